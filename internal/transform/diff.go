package transform

import (
	"fmt"

	"github.com/fennecml/fennec/internal/builtin"
	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Linearize produces the forward-mode derivative graph of g: inputs are
// the primals followed by their tangents, outputs are the primal outputs
// followed by the tangent outputs.
//
// Fails with EFFECTS_UNSUPPORTED for any graph with a non-empty effect
// set, regardless of which effects it contains.
func Linearize(reg *effects.Registry, g *ir.Graph) (*ir.Graph, error) {
	if !g.Effects.Empty() {
		return nil, ir.NewEffectsUnsupportedError("linearize", g.Effects)
	}

	b := ir.NewBuilder(reg)
	primal := make(map[*ir.Var]ir.Atom, len(g.Inputs))
	tangent := make(map[*ir.Var]ir.Atom, len(g.Inputs))
	for _, v := range g.Inputs {
		primal[v] = b.Input(v.Aval())
	}
	for _, v := range g.Inputs {
		tangent[v] = b.Input(v.Aval())
	}

	for _, instr := range g.Instrs {
		rule, ok := jvpRules[instr.Prim]
		if !ok {
			return nil, fmt.Errorf("linearize: no differentiation rule for primitive %q", instr.Prim.Name())
		}
		pIn := make([]ir.Atom, len(instr.In))
		tIn := make([]ir.Atom, len(instr.In))
		for i, a := range instr.In {
			pIn[i] = lookup(primal, a)
			tIn[i] = tangentOf(tangent, a)
		}
		pOut, tOut, err := rule(b, pIn, tIn, instr.Params)
		if err != nil {
			return nil, fmt.Errorf("linearize %s: %w", instr.Prim.Name(), err)
		}
		if len(pOut) != len(instr.Out) || len(tOut) != len(instr.Out) {
			return nil, fmt.Errorf("linearize %s: rule arity mismatch", instr.Prim.Name())
		}
		for i, v := range instr.Out {
			primal[v] = pOut[i]
			tangent[v] = tOut[i]
		}
	}

	outs := make([]ir.Atom, 0, 2*len(g.Outputs))
	for _, a := range g.Outputs {
		outs = append(outs, lookup(primal, a))
	}
	for _, a := range g.Outputs {
		outs = append(outs, tangentOf(tangent, a))
	}
	return b.Build(outs...)
}

// Gradient produces the reverse-mode derivative graph of g, which must
// have a single scalar output. The result graph maps the primal inputs
// to the cotangents of each input.
//
// Fails with EFFECTS_UNSUPPORTED for any graph with a non-empty effect
// set.
func Gradient(reg *effects.Registry, g *ir.Graph) (*ir.Graph, error) {
	if !g.Effects.Empty() {
		return nil, ir.NewEffectsUnsupportedError("gradient", g.Effects)
	}
	if len(g.Outputs) != 1 || len(g.Outputs[0].Aval().Shape) != 0 {
		return nil, fmt.Errorf("gradient requires a single scalar output")
	}

	b := ir.NewBuilder(reg)
	env := make(map[*ir.Var]ir.Atom, len(g.Inputs))
	for _, v := range g.Inputs {
		env[v] = b.Input(v.Aval())
	}

	// Forward pass: replay the primal instructions.
	for _, instr := range g.Instrs {
		in := make([]ir.Atom, len(instr.In))
		for i, a := range instr.In {
			in[i] = lookup(env, a)
		}
		out, err := b.Bind(instr.Prim, in, instr.Params)
		if err != nil {
			return nil, fmt.Errorf("gradient forward %s: %w", instr.Prim.Name(), err)
		}
		for i, v := range instr.Out {
			env[v] = out[i]
		}
	}

	// Backward pass: accumulate cotangents from the output back to the
	// inputs, in reverse instruction order.
	cot := make(map[*ir.Var]ir.Atom)
	if v, ok := g.Outputs[0].(*ir.Var); ok {
		cot[v] = ir.F64Lit(1)
	}
	for i := len(g.Instrs) - 1; i >= 0; i-- {
		instr := g.Instrs[i]
		rule, ok := vjpRules[instr.Prim]
		if !ok {
			return nil, fmt.Errorf("gradient: no transpose rule for primitive %q", instr.Prim.Name())
		}
		outCot := make([]ir.Atom, len(instr.Out))
		any := false
		for j, v := range instr.Out {
			if c, ok := cot[v]; ok {
				outCot[j] = c
				any = true
			}
		}
		if !any {
			continue // instruction does not influence the output
		}
		pIn := make([]ir.Atom, len(instr.In))
		for j, a := range instr.In {
			pIn[j] = lookup(env, a)
		}
		inCot, err := rule(b, pIn, outCot, instr.Params)
		if err != nil {
			return nil, fmt.Errorf("gradient %s: %w", instr.Prim.Name(), err)
		}
		for j, a := range instr.In {
			v, ok := a.(*ir.Var)
			if !ok || inCot[j] == nil {
				continue
			}
			if err := accumulate(b, cot, v, inCot[j]); err != nil {
				return nil, err
			}
		}
	}

	outs := make([]ir.Atom, len(g.Inputs))
	for i, v := range g.Inputs {
		c, ok := cot[v]
		if !ok {
			c = ir.F64Lit(0)
		}
		outs[i] = c
	}
	return b.Build(outs...)
}

func accumulate(b *ir.Builder, cot map[*ir.Var]ir.Atom, v *ir.Var, c ir.Atom) error {
	prev, ok := cot[v]
	if !ok {
		cot[v] = c
		return nil
	}
	sum, err := b.Bind(builtin.Add, []ir.Atom{prev, c}, nil)
	if err != nil {
		return err
	}
	cot[v] = sum[0]
	return nil
}

func lookup(env map[*ir.Var]ir.Atom, a ir.Atom) ir.Atom {
	if v, ok := a.(*ir.Var); ok {
		return env[v]
	}
	return a
}

// tangentOf maps literals to a zero tangent.
func tangentOf(env map[*ir.Var]ir.Atom, a ir.Atom) ir.Atom {
	if v, ok := a.(*ir.Var); ok {
		return env[v]
	}
	return ir.F64Lit(0)
}

type jvpRule func(b *ir.Builder, primIn, tanIn []ir.Atom, params ir.Params) (primOut, tanOut []ir.Atom, err error)

type vjpRule func(b *ir.Builder, primIn, outCot []ir.Atom, params ir.Params) (inCot []ir.Atom, err error)

var jvpRules = map[*ir.Primitive]jvpRule{
	builtin.Add: func(b *ir.Builder, p, t []ir.Atom, _ ir.Params) ([]ir.Atom, []ir.Atom, error) {
		po, err := b.Bind(builtin.Add, p, nil)
		if err != nil {
			return nil, nil, err
		}
		to, err := b.Bind(builtin.Add, t, nil)
		if err != nil {
			return nil, nil, err
		}
		return atoms(po), atoms(to), nil
	},
	builtin.Sub: func(b *ir.Builder, p, t []ir.Atom, _ ir.Params) ([]ir.Atom, []ir.Atom, error) {
		po, err := b.Bind(builtin.Sub, p, nil)
		if err != nil {
			return nil, nil, err
		}
		to, err := b.Bind(builtin.Sub, t, nil)
		if err != nil {
			return nil, nil, err
		}
		return atoms(po), atoms(to), nil
	},
	builtin.Mul: func(b *ir.Builder, p, t []ir.Atom, _ ir.Params) ([]ir.Atom, []ir.Atom, error) {
		po, err := b.Bind(builtin.Mul, p, nil)
		if err != nil {
			return nil, nil, err
		}
		// d(a*b) = da*b + a*db
		l, err := b.Bind(builtin.Mul, []ir.Atom{t[0], p[1]}, nil)
		if err != nil {
			return nil, nil, err
		}
		r, err := b.Bind(builtin.Mul, []ir.Atom{p[0], t[1]}, nil)
		if err != nil {
			return nil, nil, err
		}
		to, err := b.Bind(builtin.Add, []ir.Atom{l[0], r[0]}, nil)
		if err != nil {
			return nil, nil, err
		}
		return atoms(po), atoms(to), nil
	},
	builtin.Sum: func(b *ir.Builder, p, t []ir.Atom, _ ir.Params) ([]ir.Atom, []ir.Atom, error) {
		po, err := b.Bind(builtin.Sum, p, nil)
		if err != nil {
			return nil, nil, err
		}
		to, err := b.Bind(builtin.Sum, t, nil)
		if err != nil {
			return nil, nil, err
		}
		return atoms(po), atoms(to), nil
	},
}

var vjpRules = map[*ir.Primitive]vjpRule{
	builtin.Add: func(_ *ir.Builder, _, outCot []ir.Atom, _ ir.Params) ([]ir.Atom, error) {
		return []ir.Atom{outCot[0], outCot[0]}, nil
	},
	builtin.Sub: func(b *ir.Builder, _, outCot []ir.Atom, _ ir.Params) ([]ir.Atom, error) {
		neg, err := b.Bind(builtin.Sub, []ir.Atom{ir.F64Lit(0), outCot[0]}, nil)
		if err != nil {
			return nil, err
		}
		return []ir.Atom{outCot[0], neg[0]}, nil
	},
	builtin.Mul: func(b *ir.Builder, p, outCot []ir.Atom, _ ir.Params) ([]ir.Atom, error) {
		da, err := b.Bind(builtin.Mul, []ir.Atom{outCot[0], p[1]}, nil)
		if err != nil {
			return nil, err
		}
		db, err := b.Bind(builtin.Mul, []ir.Atom{p[0], outCot[0]}, nil)
		if err != nil {
			return nil, err
		}
		return []ir.Atom{da[0], db[0]}, nil
	},
}

func atoms(vs []*ir.Var) []ir.Atom {
	out := make([]ir.Atom, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
