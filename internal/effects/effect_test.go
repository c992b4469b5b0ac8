package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectIdentity(t *testing.T) {
	reg := NewRegistry()

	a := reg.Intern("log")
	b := reg.Intern("log")
	c := reg.Intern("log2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "log", a.Name())
	assert.False(t, a.Zero())
	assert.True(t, Effect{}.Zero())
}

func TestInternNormalizesNFC(t *testing.T) {
	reg := NewRegistry()

	// "é" composed (U+00E9) vs decomposed (U+0065 U+0301)
	composed := reg.Intern("café")
	decomposed := reg.Intern("café")

	assert.Equal(t, composed, decomposed)
}

func TestSetDeduplicatesAndKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	a, b, c := reg.Intern("a"), reg.Intern("b"), reg.Intern("c")

	s := NewSet(b, a, b, c, a)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []Effect{b, a, c}, s.Slice())
}

func TestSetIgnoresZeroEffect(t *testing.T) {
	s := NewSet(Effect{})
	assert.True(t, s.Empty())
}

func TestSetUnion(t *testing.T) {
	reg := NewRegistry()
	a, b, c := reg.Intern("a"), reg.Intern("b"), reg.Intern("c")

	u := NewSet(a, b).Union(NewSet(b, c))
	assert.Equal(t, []Effect{a, b, c}, u.Slice())

	// Union does not mutate its receivers.
	assert.Equal(t, 2, NewSet(a, b).Len())
}

func TestSetSubsetAndEqual(t *testing.T) {
	reg := NewRegistry()
	a, b, c := reg.Intern("a"), reg.Intern("b"), reg.Intern("c")

	assert.True(t, NewSet(a).SubsetOf(NewSet(a, b)))
	assert.False(t, NewSet(a, c).SubsetOf(NewSet(a, b)))
	assert.True(t, NewSet().SubsetOf(NewSet()))

	assert.True(t, NewSet(a, b).Equal(NewSet(b, a)))
	assert.False(t, NewSet(a).Equal(NewSet(a, b)))
}

func TestSetFilter(t *testing.T) {
	reg := NewRegistry()
	a, b, c := reg.Intern("a"), reg.Intern("b"), reg.Intern("c")

	odd := NewSet(a, b, c).Filter(func(e Effect) bool { return e != b })
	assert.Equal(t, []Effect{a, c}, odd.Slice())
}

func TestSetStringSorted(t *testing.T) {
	reg := NewRegistry()
	s := NewSet(reg.Intern("zeta"), reg.Intern("alpha"))
	assert.Equal(t, "{alpha, zeta}", s.String())
	assert.Equal(t, "{}", NewSet().String())
}

func TestRegistryClassification(t *testing.T) {
	reg := NewRegistry()
	log := reg.Intern("log")

	assert.False(t, reg.IsOrdered(log))
	assert.False(t, reg.IsLowerable(log))

	reg.DeclareLowerable(log)
	reg.DeclareOrdered(log)
	assert.True(t, reg.IsOrdered(log))
	assert.True(t, reg.IsLowerable(log))

	// Idempotent.
	reg.DeclareOrdered(log)
	assert.True(t, reg.IsOrdered(log))
}

func TestRegistryAllowLists(t *testing.T) {
	reg := NewRegistry()
	log := reg.Intern("log")

	assert.False(t, reg.IsAllowedInConstruct(ConstructWhile, log))
	reg.AllowInConstruct(ConstructWhile, log)
	assert.True(t, reg.IsAllowedInConstruct(ConstructWhile, log))
	assert.False(t, reg.IsAllowedInConstruct(ConstructScan, log))
}

func TestRegistrySetFilters(t *testing.T) {
	reg := NewRegistry()
	log := reg.Intern("log")
	note := reg.Intern("note")
	opaque := reg.Intern("opaque")
	reg.DeclareLowerable(log)
	reg.DeclareOrdered(log)
	reg.DeclareLowerable(note)

	s := NewSet(log, note, opaque)
	assert.Equal(t, []Effect{log}, reg.Ordered(s).Slice())
	assert.Equal(t, []Effect{note, opaque}, reg.Unordered(s).Slice())
	assert.Equal(t, []Effect{opaque}, reg.Unlowerable(s).Slice())
}

func TestRegistryClone(t *testing.T) {
	reg := NewRegistry()
	log := reg.Intern("log")
	reg.DeclareOrdered(log)
	reg.AllowInConstruct(ConstructWhile, log)

	cp := reg.Clone()
	require.True(t, cp.IsOrdered(log))
	require.True(t, cp.IsAllowedInConstruct(ConstructWhile, log))

	// Mutating the clone leaves the original untouched.
	other := cp.Intern("other")
	cp.DeclareOrdered(other)
	cp.AllowInConstruct(ConstructScan, log)
	assert.False(t, reg.IsOrdered(reg.Intern("other")))
	assert.False(t, reg.IsAllowedInConstruct(ConstructScan, log))
}

func TestRegistryConcurrentIntern(t *testing.T) {
	reg := NewRegistry()
	done := make(chan Effect, 16)
	for i := 0; i < 16; i++ {
		go func() { done <- reg.Intern("shared") }()
	}
	first := <-done
	for i := 1; i < 16; i++ {
		assert.Equal(t, first, <-done)
	}
}
