package lower

import (
	"github.com/fennecml/fennec/internal/effects"
)

// Token is an opaque synchronization handle for one ordered effect at a
// point in the lowering: it wraps the program value that carries the
// effect's happens-after dependency.
type Token struct {
	v Value
}

// Value returns the program value backing the token.
func (t Token) Value() Value { return t.v }

// TokenSet maps ordered effects to their current tokens. The key set of
// a valid TokenSet at any lowering point is exactly the ordered effects
// active at that point; iteration order is the order effects were first
// inserted, which the lowering keeps aligned with first-encounter order
// in the graph.
//
// TokenSet values are immutable; With and Update return copies.
type TokenSet struct {
	order []effects.Effect
	m     map[effects.Effect]Token
}

// NewTokenSet builds an empty token set.
func NewTokenSet() TokenSet {
	return TokenSet{}
}

// Get returns the token for e.
func (ts TokenSet) Get(e effects.Effect) (Token, bool) {
	t, ok := ts.m[e]
	return t, ok
}

// Effects returns the key set in insertion order.
func (ts TokenSet) Effects() []effects.Effect {
	out := make([]effects.Effect, len(ts.order))
	copy(out, ts.order)
	return out
}

// Len returns the number of entries.
func (ts TokenSet) Len() int { return len(ts.order) }

// Empty reports whether the set has no entries.
func (ts TokenSet) Empty() bool { return len(ts.order) == 0 }

// With returns a copy with e mapped to t. An existing entry is replaced
// in place; a new entry appends to the insertion order.
func (ts TokenSet) With(e effects.Effect, t Token) TokenSet {
	out := ts.clone()
	if _, ok := out.m[e]; !ok {
		out.order = append(out.order, e)
	}
	out.m[e] = t
	return out
}

// Update returns a copy with other's entries replacing entries for the
// same effects. Effects in other but not in ts are appended.
func (ts TokenSet) Update(other TokenSet) TokenSet {
	out := ts
	for _, e := range other.order {
		out = out.With(e, other.m[e])
	}
	return out
}

// Subset returns the entries for the given effects, in keep's order.
func (ts TokenSet) Subset(keep effects.Set) TokenSet {
	out := NewTokenSet()
	for _, e := range keep.Slice() {
		if t, ok := ts.m[e]; ok {
			out = out.With(e, t)
		}
	}
	return out
}

// KeysEqual reports whether the key set equals effs exactly: no extra
// keys and no missing keys.
func (ts TokenSet) KeysEqual(effs effects.Set) bool {
	if len(ts.order) != effs.Len() {
		return false
	}
	for _, e := range ts.order {
		if !effs.Contains(e) {
			return false
		}
	}
	return true
}

// KeySet returns the key set as an effect set.
func (ts TokenSet) KeySet() effects.Set {
	return effects.NewSet(ts.order...)
}

func (ts TokenSet) clone() TokenSet {
	out := TokenSet{
		order: make([]effects.Effect, len(ts.order)),
		m:     make(map[effects.Effect]Token, len(ts.m)),
	}
	copy(out.order, ts.order)
	for e, t := range ts.m {
		out.m[e] = t
	}
	return out
}
