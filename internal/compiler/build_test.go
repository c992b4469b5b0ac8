package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

func TestBuild(t *testing.T) {
	mod, err := Build(validSpec())
	require.NoError(t, err)

	assert.Equal(t, "double_log", mod.Name)

	log := mod.Registry.Intern("log")
	assert.True(t, mod.Registry.IsOrdered(log))
	assert.True(t, mod.Registry.IsLowerable(log))
	assert.True(t, mod.Registry.IsAllowedInConstruct(effects.ConstructWhile, log))

	require.NotNil(t, mod.Graph)
	assert.Len(t, mod.Graph.Inputs, 1)
	assert.Len(t, mod.Graph.Instrs, 2)
	assert.Len(t, mod.Graph.Outputs, 1)
	assert.True(t, mod.Graph.Effects.Contains(log))
}

func TestBuildHostCallResults(t *testing.T) {
	spec := validSpec()
	spec.Program.Body[1].Out = []string{"r"}
	spec.Program.Body[1].Outs = []InputDecl{{DType: "f64"}}
	spec.Program.Outputs = []string{"r"}

	mod, err := Build(spec)
	require.NoError(t, err)

	require.Len(t, mod.Graph.Outputs, 1)
	assert.Equal(t, ir.Scalar(ir.F64), mod.Graph.Outputs[0].Aval())
}

func TestBuildLiteralOperand(t *testing.T) {
	spec := &ModuleSpec{
		Name: "offset",
		Program: ProgramSpec{
			Inputs: []InputDecl{{Name: "x", DType: "f64"}},
			Body: []InstrDecl{
				{Op: "add", Args: []ArgRef{{Name: "x"}, {Lit: 2, IsLit: true}}, Out: []string{"y"}},
			},
			Outputs: []string{"y"},
		},
	}

	mod, err := Build(spec)
	require.NoError(t, err)
	assert.True(t, mod.Graph.Effects.Empty())
}

func TestBuildShapeMismatch(t *testing.T) {
	spec := validSpec()
	spec.Program.Inputs = append(spec.Program.Inputs, InputDecl{Name: "v", DType: "f64", Shape: []int{3}})
	spec.Program.Body[0].Args[1] = ArgRef{Name: "v"}

	_, err := Build(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestBuildUndefinedValue(t *testing.T) {
	spec := validSpec()
	spec.Program.Body[0].Args[0] = ArgRef{Name: "ghost"}

	_, err := Build(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
