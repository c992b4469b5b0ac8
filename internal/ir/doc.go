// Package ir provides the effect-annotated trace intermediate representation.
//
// This package contains the IR types and the graph well-formedness rules.
// All other internal packages import ir; ir imports only effects. This
// keeps the IR the foundational layer with no circular dependencies.
//
// A Graph is an acyclic, ordered sequence of Instructions produced by a
// Builder (the tracer). Every Instruction owns a fixed effect set,
// computed once at bind time by its primitive's abstract-evaluation rule.
// The Graph's own declared effect set must equal the union of its
// instructions' effect sets:
//
//   - the union rule is applied by Builder.Build
//   - Check verifies the subset invariant (every instruction's effects
//     are covered by the graph's declared effects) and variable scoping
//
// A graph with no effectful instructions reports the empty set; that is
// the default state, not a special case.
//
// Key design constraints:
//   - Instructions are immutable after creation
//   - Graphs carry no back-references to whatever embeds them
//   - Effects enter only through abstract-evaluation rules; nothing in
//     this package invents an effect
package ir
