package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennecml/fennec/internal/builtin"
	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// testRegistry mirrors the shared fixture registry without importing
// testutil, which sits above this package: "log" is ordered and
// allow-listed for while and scan only, "ordered-r" is ordered and
// allow-listed for cond only, "note" is unordered and allow-listed
// everywhere, "orphan" is on no allow-list.
func testRegistry(t *testing.T) *effects.Registry {
	t.Helper()
	reg := effects.NewRegistry()

	log := reg.Intern("log")
	reg.DeclareLowerable(log)
	reg.DeclareOrdered(log)
	reg.AllowInConstruct(effects.ConstructWhile, log)
	reg.AllowInConstruct(effects.ConstructScan, log)

	ordr := reg.Intern("ordered-r")
	reg.DeclareLowerable(ordr)
	reg.DeclareOrdered(ordr)
	reg.AllowInConstruct(effects.ConstructCond, ordr)

	note := reg.Intern("note")
	reg.DeclareLowerable(note)
	for kind := range effects.ValidConstructKinds {
		reg.AllowInConstruct(kind, note)
	}

	reg.Intern("orphan")
	return reg
}

// identityGraph traces x -> x with the named effects emitted along the way.
func identityGraph(t *testing.T, reg *effects.Registry, names ...string) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	for _, n := range names {
		_, err := b.Bind(builtin.Effect, nil, ir.Params{builtin.ParamEffect: reg.Intern(n)})
		require.NoError(t, err)
	}
	g, err := b.Build(x)
	require.NoError(t, err)
	return g
}

// predGraph traces a loop condition that maps the carry to a constant
// false, with the named effects emitted along the way.
func predGraph(t *testing.T, reg *effects.Registry, names ...string) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder(reg)
	b.Input(ir.Scalar(ir.F64))
	for _, n := range names {
		_, err := b.Bind(builtin.Effect, nil, ir.Params{builtin.ParamEffect: reg.Intern(n)})
		require.NoError(t, err)
	}
	g, err := b.Build(ir.Lit{Value: 0, DT: ir.I1})
	require.NoError(t, err)
	return g
}

func TestCondForwardsBranchEffects(t *testing.T) {
	reg := testRegistry(t)
	note := reg.Intern("note")

	b := ir.NewBuilder(reg)
	pred := b.Input(ir.Scalar(ir.I1))
	x := b.Input(ir.Scalar(ir.F64))

	branches := []*ir.Graph{
		identityGraph(t, reg, "note"),
		identityGraph(t, reg, "note"),
	}
	out, err := Cond(b, pred, branches, x)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, ir.Scalar(ir.F64), out[0].Aval())

	g, err := b.Build(out[0])
	require.NoError(t, err)
	assert.True(t, g.Effects.Equal(effects.NewSet(note)))
}

func TestCondAcceptsAllowListedOrderedEffect(t *testing.T) {
	reg := testRegistry(t)
	ordr := reg.Intern("ordered-r")

	b := ir.NewBuilder(reg)
	pred := b.Input(ir.Scalar(ir.I1))
	x := b.Input(ir.Scalar(ir.F64))

	branches := []*ir.Graph{
		identityGraph(t, reg, "ordered-r"),
		identityGraph(t, reg, "ordered-r"),
	}
	out, err := Cond(b, pred, branches, x)
	require.NoError(t, err)

	g, err := b.Build(out[0])
	require.NoError(t, err)
	assert.True(t, g.Effects.Equal(effects.NewSet(ordr)))
}

func TestCondRejectsDivergentBranchEffects(t *testing.T) {
	reg := testRegistry(t)

	b := ir.NewBuilder(reg)
	pred := b.Input(ir.Scalar(ir.I1))
	x := b.Input(ir.Scalar(ir.F64))

	branches := []*ir.Graph{
		identityGraph(t, reg, "note"),
		identityGraph(t, reg),
	}
	_, err := Cond(b, pred, branches, x)
	require.Error(t, err)
	assert.True(t, ir.IsEffectsUnsupportedError(err))

	var ge *ir.GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "cond", ge.Construct)
	// The report names the symmetric difference, not either full set.
	assert.True(t, ge.Effects.Equal(effects.NewSet(reg.Intern("note"))))
}

func TestCondEnforcesAllowList(t *testing.T) {
	reg := testRegistry(t)

	b := ir.NewBuilder(reg)
	pred := b.Input(ir.Scalar(ir.I1))
	x := b.Input(ir.Scalar(ir.F64))

	// "log" is allow-listed for while and scan but not cond.
	branches := []*ir.Graph{
		identityGraph(t, reg, "log"),
		identityGraph(t, reg, "log"),
	}
	_, err := Cond(b, pred, branches, x)
	require.Error(t, err)
	assert.True(t, ir.IsEffectsUnsupportedError(err))
	assert.Contains(t, err.Error(), "construct=cond")
	assert.Contains(t, err.Error(), "log")
}

func TestCondRequiresTwoBranches(t *testing.T) {
	reg := testRegistry(t)
	b := ir.NewBuilder(reg)
	pred := b.Input(ir.Scalar(ir.I1))
	x := b.Input(ir.Scalar(ir.F64))

	_, err := Cond(b, pred, []*ir.Graph{identityGraph(t, reg)}, x)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 branches")
}

func TestWhileAcceptsAllowListedEffects(t *testing.T) {
	reg := testRegistry(t)
	log := reg.Intern("log")

	cond := predGraph(t, reg)
	body := identityGraph(t, reg, "log")

	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	out, err := While(b, cond, body, x)
	require.NoError(t, err)
	require.Len(t, out, 1)

	g, err := b.Build(out[0])
	require.NoError(t, err)
	assert.True(t, g.Effects.Equal(effects.NewSet(log)))
}

func TestWhileRejectsDisallowedEffect(t *testing.T) {
	reg := testRegistry(t)

	cond := predGraph(t, reg)
	body := identityGraph(t, reg, "orphan")

	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	_, err := While(b, cond, body, x)
	require.Error(t, err)
	assert.True(t, ir.IsEffectsUnsupportedError(err))
	assert.Contains(t, err.Error(), "construct=while")
}

func TestWhileChecksCondEffects(t *testing.T) {
	reg := testRegistry(t)

	cond := predGraph(t, reg, "orphan")
	body := identityGraph(t, reg)

	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	_, err := While(b, cond, body, x)
	require.Error(t, err)
	assert.True(t, ir.IsEffectsUnsupportedError(err))
}

func TestWhileRejectsNonBoolCond(t *testing.T) {
	reg := testRegistry(t)

	// Condition produces f64, not i1.
	cond := identityGraph(t, reg)
	body := identityGraph(t, reg)

	b := ir.NewBuilder(reg)
	x := b.Input(ir.Scalar(ir.F64))
	_, err := While(b, cond, body, x)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single i1 scalar")
}

func TestScanStacksPerStepOutputs(t *testing.T) {
	reg := testRegistry(t)
	log := reg.Intern("log")

	// body: (carry, x) -> (carry+x, carry+x) with a log firing per step.
	bb := ir.NewBuilder(reg)
	carry := bb.Input(ir.Scalar(ir.F64))
	x := bb.Input(ir.Scalar(ir.F64))
	sum, err := bb.Bind(builtin.Add, []ir.Atom{carry, x}, nil)
	require.NoError(t, err)
	_, err = bb.Bind(builtin.Effect, nil, ir.Params{builtin.ParamEffect: log})
	require.NoError(t, err)
	body, err := bb.Build(sum[0], sum[0])
	require.NoError(t, err)

	b := ir.NewBuilder(reg)
	init := b.Input(ir.Scalar(ir.F64))
	xs := b.Input(ir.Vec(ir.F64, 4))
	out, err := Scan(b, body, 4, []ir.Atom{init}, xs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, ir.Scalar(ir.F64), out[0].Aval())
	assert.Equal(t, ir.Vec(ir.F64, 4), out[1].Aval())

	g, err := b.Build(out[0], out[1])
	require.NoError(t, err)
	assert.True(t, g.Effects.Equal(effects.NewSet(log)))
}

func TestScanRejectsDisallowedEffect(t *testing.T) {
	reg := testRegistry(t)

	bb := ir.NewBuilder(reg)
	carry := bb.Input(ir.Scalar(ir.F64))
	bb.Input(ir.Scalar(ir.F64))
	_, err := bb.Bind(builtin.Effect, nil, ir.Params{builtin.ParamEffect: reg.Intern("orphan")})
	require.NoError(t, err)
	body, err := bb.Build(carry)
	require.NoError(t, err)

	b := ir.NewBuilder(reg)
	init := b.Input(ir.Scalar(ir.F64))
	xs := b.Input(ir.Vec(ir.F64, 2))
	_, err = Scan(b, body, 2, []ir.Atom{init}, xs)
	require.Error(t, err)
	assert.True(t, ir.IsEffectsUnsupportedError(err))
	assert.Contains(t, err.Error(), "construct=scan")
}

func TestScanRejectsNegativeLength(t *testing.T) {
	reg := testRegistry(t)

	bb := ir.NewBuilder(reg)
	carry := bb.Input(ir.Scalar(ir.F64))
	bb.Input(ir.Scalar(ir.F64))
	body, err := bb.Build(carry)
	require.NoError(t, err)

	b := ir.NewBuilder(reg)
	init := b.Input(ir.Scalar(ir.F64))
	xs := b.Input(ir.Vec(ir.F64, 2))
	_, err = Scan(b, body, -1, []ir.Atom{init}, xs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}
