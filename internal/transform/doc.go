// Package transform implements the graph-to-graph transforms whose
// effect policy is veto rather than forwarding:
//
//   - Linearize (forward-mode differentiation) and Gradient
//     (reverse-mode) reject any non-empty effect set. Differentiation
//     re-evaluates and reorders work in ways incompatible with
//     single-occurrence, ordered side effects.
//   - Replicate (map-style parallelism across independent workers)
//     forwards unordered effects unchanged and rejects ordered effects:
//     there is no cross-worker synchronization that could give their
//     occurrences a program order.
//
// The numeric differentiation rules cover the builtin primitive set
// only; the real op set supplies its own rules and is out of scope here.
package transform
