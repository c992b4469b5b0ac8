package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleModule = `
module: {
	name: "double_log"
	effects: {
		log: {ordered: true, lowerable: true, allow: ["while", "scan"]}
		count: {lowerable: true}
	}
	program: {
		inputs: [{name: "x", dtype: "f64", shape: [2]}]
		body: [
			{op: "mul", args: ["x", "x"], out: ["y"]},
			{op: "host_call", callback: "log", effect: "log", args: ["y"]},
		]
		outputs: ["y"]
	}
}
`

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return v.LookupPath(cue.ParsePath("module"))
}

func TestCompileModule(t *testing.T) {
	spec, err := CompileModule(compileString(t, sampleModule))
	require.NoError(t, err)

	assert.Equal(t, "double_log", spec.Name)

	require.Len(t, spec.Effects, 2)
	assert.Equal(t, "log", spec.Effects[0].Name)
	assert.True(t, spec.Effects[0].Ordered)
	assert.True(t, spec.Effects[0].Lowerable)
	assert.Equal(t, []string{"while", "scan"}, spec.Effects[0].Allow)
	assert.Equal(t, "count", spec.Effects[1].Name)
	assert.False(t, spec.Effects[1].Ordered)

	require.Len(t, spec.Program.Inputs, 1)
	assert.Equal(t, "x", spec.Program.Inputs[0].Name)
	assert.Equal(t, "f64", spec.Program.Inputs[0].DType)
	assert.Equal(t, []int{2}, spec.Program.Inputs[0].Shape)

	require.Len(t, spec.Program.Body, 2)
	assert.Equal(t, "mul", spec.Program.Body[0].Op)
	assert.Equal(t, []string{"y"}, spec.Program.Body[0].Out)
	assert.Equal(t, "host_call", spec.Program.Body[1].Op)
	assert.Equal(t, "log", spec.Program.Body[1].Effect)
	assert.Equal(t, "log", spec.Program.Body[1].Callback)

	assert.Equal(t, []string{"y"}, spec.Program.Outputs)
}

func TestCompileModuleLiteralOperand(t *testing.T) {
	spec, err := CompileModule(compileString(t, `
module: {
	name: "offset"
	program: {
		inputs: [{name: "x", dtype: "f64"}]
		body: [{op: "add", args: ["x", 2.0], out: ["y"]}]
		outputs: ["y"]
	}
}
`))
	require.NoError(t, err)

	require.Len(t, spec.Program.Body, 1)
	args := spec.Program.Body[0].Args
	require.Len(t, args, 2)
	assert.False(t, args[0].IsLit)
	assert.Equal(t, "x", args[0].Name)
	assert.True(t, args[1].IsLit)
	assert.Equal(t, 2.0, args[1].Lit)
}

func TestCompileModuleMissingName(t *testing.T) {
	_, err := CompileModule(compileString(t, `
module: {
	program: {body: [{op: "add", args: ["x", "x"]}]}
}
`))
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "name", cerr.Field)
}

func TestCompileModuleMissingProgram(t *testing.T) {
	_, err := CompileModule(compileString(t, `module: {name: "empty"}`))
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "program", cerr.Field)
}

func TestCompileModuleBadOperand(t *testing.T) {
	_, err := CompileModule(compileString(t, `
module: {
	name: "bad"
	program: {
		body: [{op: "add", args: [true, "x"]}]
	}
}
`))
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "args", cerr.Field)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "name", Message: "module name is required"}
	assert.Equal(t, "name: module name is required", err.Error())
}
