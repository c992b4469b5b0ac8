// Package store provides the durable effect journal: a SQLite-backed
// audit trail of effect firings.
//
// The journal is purely observational. It records each host-callback
// firing (effect, execution context, logical seq, program fingerprint,
// flattened arguments) in the order the callbacks actually ran, which
// for an ordered effect is program order. It plays no role in the
// token-threading protocol itself; dropping the journal changes nothing
// about execution semantics.
//
// SQLite is configured with WAL mode and a single writer connection so
// concurrent replication workers can append without SQLITE_BUSY errors.
package store
