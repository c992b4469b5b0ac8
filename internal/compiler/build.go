package compiler

import (
	"fmt"

	"github.com/fennecml/fennec/internal/builtin"
	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Module is a fully built module: the effect registry populated from
// the declarations and the traced, checked graph.
type Module struct {
	Name     string
	Registry *effects.Registry
	Graph    *ir.Graph
}

// Build traces a validated spec into a Module. The spec must have
// passed Validate; Build reports tracing failures (shape mismatches,
// primitive contract violations) but does not re-run schema checks.
func Build(spec *ModuleSpec) (*Module, error) {
	reg := effects.NewRegistry()
	for _, decl := range spec.Effects {
		e := reg.Intern(decl.Name)
		if decl.Lowerable {
			reg.DeclareLowerable(e)
		}
		if decl.Ordered {
			reg.DeclareOrdered(e)
		}
		for _, kind := range decl.Allow {
			reg.AllowInConstruct(effects.ConstructKind(kind), e)
		}
	}

	b := ir.NewBuilder(reg)
	env := make(map[string]ir.Atom)
	for _, in := range spec.Program.Inputs {
		aval := ir.AbstractValue{DType: ir.DType(in.DType), Shape: in.Shape}
		env[in.Name] = b.Input(aval)
	}

	for i, instr := range spec.Program.Body {
		prim, ok := builtinOp(instr.Op)
		if !ok {
			return nil, fmt.Errorf("body[%d]: unknown op %q", i, instr.Op)
		}

		args := make([]ir.Atom, len(instr.Args))
		for j, arg := range instr.Args {
			if arg.IsLit {
				args[j] = ir.F64Lit(arg.Lit)
				continue
			}
			atom, ok := env[arg.Name]
			if !ok {
				return nil, fmt.Errorf("body[%d]: undefined value %q", i, arg.Name)
			}
			args[j] = atom
		}

		params := ir.Params{}
		if instr.Effect != "" {
			params[builtin.ParamEffect] = reg.Intern(instr.Effect)
		}
		if instr.Callback != "" {
			params[builtin.ParamCallback] = instr.Callback
		}
		if len(instr.Outs) > 0 {
			outs := make([]ir.AbstractValue, len(instr.Outs))
			for j, res := range instr.Outs {
				outs[j] = ir.AbstractValue{DType: ir.DType(res.DType), Shape: res.Shape}
			}
			params[builtin.ParamOuts] = outs
		}

		results, err := b.Bind(prim, args, params)
		if err != nil {
			return nil, fmt.Errorf("body[%d]: %w", i, err)
		}
		if len(instr.Out) > len(results) {
			return nil, fmt.Errorf("body[%d]: %s produces %d results, out names %d",
				i, instr.Op, len(results), len(instr.Out))
		}
		for j, name := range instr.Out {
			env[name] = results[j]
		}
	}

	outputs := make([]ir.Atom, len(spec.Program.Outputs))
	for i, name := range spec.Program.Outputs {
		atom, ok := env[name]
		if !ok {
			return nil, fmt.Errorf("outputs[%d]: undefined value %q", i, name)
		}
		outputs[i] = atom
	}

	g, err := b.Build(outputs...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", spec.Name, err)
	}
	return &Module{Name: spec.Name, Registry: reg, Graph: g}, nil
}

// builtinOp resolves an op name against the builtin primitive set.
func builtinOp(name string) (*ir.Primitive, bool) {
	return builtin.ByName(name)
}
