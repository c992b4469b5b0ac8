// Package control provides the structured control-flow constructs of the
// trace IR: N-way branches (Cond), condition+body loops (While), and
// bounded iteration with carried state (Scan).
//
// Each construct embeds sub-graphs as instruction parameters and applies
// the effect-propagation policy for its kind at construction time:
//
//   - Cond: every branch must carry an identical effect set, and every
//     member must be allow-listed for the cond construct kind. A branch
//     introducing anything else fails immediately.
//   - While: the condition and body effect sets must each be subsets of
//     the while allow-list. Ordered effects are permitted only when
//     explicitly allow-listed; multiple distinct ordered effects are
//     tracked independently, never merged.
//   - Scan: the while policy, applied to the per-step body graph.
//
// Accepted effects forward unchanged into the enclosing graph's effect
// set via the construct instruction's own effect set. Effects are a
// capability that must be explicitly threaded wherever a sub-graph is
// embedded; a construct never drops or invents one silently.
package control
