package control

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// ParamCallee is the sub-graph parameter of a call instruction.
const ParamCallee = "callee"

// CallP applies a traced function as a single instruction. The callee's
// effect set forwards unchanged into the enclosing graph: a call
// boundary neither launders nor introduces effects.
var CallP = ir.NewPrimitive("call").SetMultipleResults().SetAbstractEval(callEval)

// Call traces an application of callee to args.
func Call(b *ir.Builder, callee *ir.Graph, args ...ir.Atom) ([]*ir.Var, error) {
	return b.Bind(CallP, args, ir.Params{ParamCallee: callee})
}

// Inline splices callee's instructions directly into the builder's
// trace, substituting args for the callee's inputs. The instructions
// keep their own effect sets, so the effects forward into the enclosing
// graph through the ordinary union rule.
func Inline(b *ir.Builder, callee *ir.Graph, args ...ir.Atom) ([]ir.Atom, error) {
	if len(args) != len(callee.Inputs) {
		return nil, fmt.Errorf("inline: callee takes %d inputs, got %d args", len(callee.Inputs), len(args))
	}
	env := make(map[*ir.Var]ir.Atom, len(callee.Inputs))
	for i, v := range callee.Inputs {
		env[v] = args[i]
	}
	for _, instr := range callee.Instrs {
		in := make([]ir.Atom, len(instr.In))
		for i, a := range instr.In {
			in[i] = substitute(env, a)
		}
		out, err := b.Bind(instr.Prim, in, instr.Params)
		if err != nil {
			return nil, err
		}
		for i, v := range instr.Out {
			env[v] = out[i]
		}
	}
	outs := make([]ir.Atom, len(callee.Outputs))
	for i, a := range callee.Outputs {
		outs[i] = substitute(env, a)
	}
	return outs, nil
}

func substitute(env map[*ir.Var]ir.Atom, a ir.Atom) ir.Atom {
	if v, ok := a.(*ir.Var); ok {
		if repl, ok := env[v]; ok {
			return repl
		}
	}
	return a
}

func callEval(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, effects.Set, error) {
	callee := params.Graph(ParamCallee)
	if callee == nil {
		return nil, effects.Set{}, fmt.Errorf("call requires a callee graph")
	}
	if len(callee.Inputs) != len(in) {
		return nil, effects.Set{}, fmt.Errorf("call: callee takes %d inputs, got %d operands",
			len(callee.Inputs), len(in))
	}
	out := make([]ir.AbstractValue, len(callee.Outputs))
	for i, a := range callee.Outputs {
		out[i] = a.Aval()
	}
	return out, callee.Effects, nil
}
