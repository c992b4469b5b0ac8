package effects

import (
	"sort"
	"strings"
)

// Effect is an opaque handle naming a side-effect category.
//
// Handles are comparable and usable as map keys. Two handles are equal
// iff their NFC-normalized names are equal; use Registry.Intern to
// construct them so normalization is applied consistently.
type Effect struct {
	name string
}

// Name returns the normalized effect name.
func (e Effect) Name() string { return e.name }

// String implements fmt.Stringer.
func (e Effect) String() string { return e.name }

// Zero reports whether the handle is the zero value (no effect).
func (e Effect) Zero() bool { return e.name == "" }

// Set is a deduplicated set of effects.
//
// Membership is what defines equality; iteration order is the order in
// which effects were first added, which gives deterministic error
// messages and a deterministic boundary-placeholder order at lowering
// time without the set itself being "ordered" in any semantic sense.
type Set struct {
	order []Effect
	index map[Effect]int
}

// NewSet builds a set from the given effects, deduplicating.
func NewSet(effs ...Effect) Set {
	var s Set
	for _, e := range effs {
		s.add(e)
	}
	return s
}

func (s *Set) add(e Effect) {
	if e.Zero() {
		return
	}
	if s.index == nil {
		s.index = make(map[Effect]int)
	}
	if _, ok := s.index[e]; ok {
		return
	}
	s.index[e] = len(s.order)
	s.order = append(s.order, e)
}

// Contains reports whether e is a member.
func (s Set) Contains(e Effect) bool {
	_, ok := s.index[e]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int { return len(s.order) }

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return len(s.order) == 0 }

// Union returns a new set containing members of both sets.
// First-added order is preserved: s's members first, then other's
// members not already present.
func (s Set) Union(other Set) Set {
	out := NewSet(s.order...)
	for _, e := range other.order {
		out.add(e)
	}
	return out
}

// SubsetOf reports whether every member of s is a member of other.
func (s Set) SubsetOf(other Set) bool {
	for _, e := range s.order {
		if !other.Contains(e) {
			return false
		}
	}
	return true
}

// Equal reports membership equality, ignoring insertion order.
func (s Set) Equal(other Set) bool {
	return s.Len() == other.Len() && s.SubsetOf(other)
}

// Slice returns the members in first-added order.
// The returned slice is a copy.
func (s Set) Slice() []Effect {
	out := make([]Effect, len(s.order))
	copy(out, s.order)
	return out
}

// Filter returns the members for which keep returns true, preserving order.
func (s Set) Filter(keep func(Effect) bool) Set {
	var out Set
	for _, e := range s.order {
		if keep(e) {
			out.add(e)
		}
	}
	return out
}

// String renders the set as {a, b, c} with members sorted by name, so the
// rendering is stable regardless of insertion order.
func (s Set) String() string {
	names := make([]string, len(s.order))
	for i, e := range s.order {
		names[i] = e.name
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ", ") + "}"
}
