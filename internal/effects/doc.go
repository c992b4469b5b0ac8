// Package effects defines the effect vocabulary for the fennec trace IR.
//
// An effect is a declared side-effect category a primitive may produce
// (host logging, device callbacks, I/O), independent of its numeric result.
// Effects enter the IR only through a primitive's abstract-evaluation rule;
// everything downstream (graph validation, construct embedding, lowering,
// runtime token threading) consumes the classification stored here.
//
// The Registry is the single source of truth for three classifications:
//
//   - lowerable: the backend knows how to compile the effect
//   - ordered: occurrences must be observed in program order, which the
//     lowering protocol enforces by threading synchronization tokens
//   - per-construct allow-lists: which effects a structured-control
//     construct (cond, while, scan, replicate) may contain
//
// A Registry is explicit, injected state. There are no package-level
// mutable tables; tests clone a registry instead of mutating a shared one.
// Writes are expected only at setup time. Concurrent reads are safe.
//
// Effect identity is an intern-table handle: Intern normalizes the name to
// NFC and returns a comparable handle, so two visually identical names
// always compare equal regardless of Unicode encoding.
package effects
