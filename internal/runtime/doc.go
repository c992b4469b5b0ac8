// Package runtime executes lowered programs and maintains the live
// token state that orders effects across repeated invocations.
//
// ARCHITECTURE:
//
// Token chaining:
// Each compiled call of an effectful function consumes, per root
// ordered effect, the token its execution context last produced, and
// stores a successor token before the call returns. An ordered host
// callback is scheduled asynchronously behind its predecessor token and
// resolves its successor when the callback has run. Two sequential
// calls in one context therefore observe strictly increasing token
// generations, and their effects execute in program order even though
// the callbacks themselves run asynchronously.
//
// Context isolation:
// Tokens are keyed by (effect, execution context). Contexts never share
// or interleave tokens; ordering is guaranteed only within a single
// context's sequence of calls. The store uses a per-context map behind
// its own lock, so concurrent contexts proceed without serializing on
// unrelated effects or unrelated contexts.
//
// Unordered effects:
// Unordered host callbacks execute inline with no token and leave no
// store entry. Nothing orders their occurrences, within or across
// calls.
//
// The only blocking operation is TokenStore.BlockUntilReady, an
// explicit opt-in barrier. There is no cancellation for in-flight
// effects: once a token chain is scheduled, completion is awaited, not
// cancelled.
package runtime
