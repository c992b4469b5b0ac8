package lower

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Lower compiles a graph to a backend program, threading tokens through
// every ordered effect. The returned program's entry function carries
// one zero-sized token placeholder per root ordered effect, prepended
// to its parameter and result lists in first-encountered order.
func Lower(reg *effects.Registry, rules *Rules, g *ir.Graph) (*Program, error) {
	if err := ir.Check(g); err != nil {
		return nil, err
	}
	if unlowerable := reg.Unlowerable(g.Effects); !unlowerable.Empty() {
		return nil, NewUnlowerableEffectError(unlowerable)
	}

	ordered := reg.Ordered(g.Effects)
	prog := &Program{
		BoundaryEffects: ordered.Slice(),
		Fingerprint:     ir.Fingerprint(g),
	}
	mc := &ModuleContext{reg: reg, rules: rules, program: prog}

	main := newFunction("main")
	prog.Funcs = append(prog.Funcs, main)
	fb := &FuncBuilder{fn: main}

	// Boundary placeholders: one zero-sized token input per root
	// ordered effect. The placeholders keep the calling convention
	// effect-set-driven; the body synthesizes its own fresh tokens.
	for range ordered.Slice() {
		main.addParam(TokenType{})
	}
	env := make(map[*ir.Var]Value, len(g.Inputs))
	for _, v := range g.Inputs {
		env[v] = main.addParam(TensorType{Aval: v.Aval()})
	}

	tokens := NewTokenSet()
	for _, e := range ordered.Slice() {
		tokens = tokens.With(e, Token{v: fb.EmitCreateToken(e)})
	}

	outs, finalTokens, err := mc.lowerInto(fb, g, env, tokens)
	if err != nil {
		return nil, err
	}

	rets := make([]Value, 0, ordered.Len()+len(outs))
	for _, e := range ordered.Slice() {
		t, _ := finalTokens.Get(e)
		rets = append(rets, t.Value())
	}
	rets = append(rets, outs...)
	fb.Return(rets...)
	return prog, nil
}

// EmitGraphAsFunction lowers g as a separate function whose signature
// threads a token per member of tokenEffects: parameters are
// [tokens..., inputs...] and results are [tokens..., outputs...].
// Effects in tokenEffects that g never threads to an instruction pass
// through unchanged, keeping the signature effect-set-driven.
func (mc *ModuleContext) EmitGraphAsFunction(base string, g *ir.Graph, tokenEffects effects.Set) (*Function, error) {
	fn := newFunction(mc.uniqueName(base))
	mc.program.Funcs = append(mc.program.Funcs, fn)
	fb := &FuncBuilder{fn: fn}

	tokens := NewTokenSet()
	for _, e := range tokenEffects.Slice() {
		tokens = tokens.With(e, Token{v: fn.addParam(TokenType{})})
	}
	env := make(map[*ir.Var]Value, len(g.Inputs))
	for _, v := range g.Inputs {
		env[v] = fn.addParam(TensorType{Aval: v.Aval()})
	}

	outs, finalTokens, err := mc.lowerInto(fb, g, env, tokens)
	if err != nil {
		return nil, err
	}

	rets := make([]Value, 0, tokenEffects.Len()+len(outs))
	for _, e := range tokenEffects.Slice() {
		t, _ := finalTokens.Get(e)
		rets = append(rets, t.Value())
	}
	rets = append(rets, outs...)
	fb.Return(rets...)
	return fn, nil
}

// lowerInto lowers g's instructions into fb. tokens must carry an entry
// for every ordered effect of g; the returned set carries the updated
// tokens after the last instruction.
func (mc *ModuleContext) lowerInto(fb *FuncBuilder, g *ir.Graph, env map[*ir.Var]Value, tokens TokenSet) ([]Value, TokenSet, error) {
	for _, instr := range g.Instrs {
		rule, ok := mc.rules.Lookup(instr.Prim)
		if !ok {
			return nil, tokens, NewNoRuleError(instr.Prim.Name())
		}

		in := make([]Value, len(instr.In))
		for i, a := range instr.In {
			in[i] = atomValue(fb, env, a)
		}

		ordered := mc.reg.Ordered(instr.Effects)
		ctx := &RuleContext{
			FB:       fb,
			Instr:    instr,
			module:   mc,
			ordered:  ordered,
			tokensIn: tokens.Subset(ordered),
		}

		out, err := rule(ctx, in)
		if err != nil {
			return nil, tokens, fmt.Errorf("lowering %s: %w", instr.Prim.Name(), err)
		}

		// Token contract validation: the rule must hand back exactly
		// one updated token per ordered effect it was given.
		if ctx.tokensOut == nil {
			if !ordered.Empty() {
				return nil, tokens, NewMissingTokensOutError(instr.Prim.Name(), ordered)
			}
		} else {
			if !ctx.tokensOut.KeysEqual(ordered) {
				return nil, tokens, NewTokenMismatchError(instr.Prim.Name(), ordered, ctx.tokensOut.KeySet())
			}
			tokens = tokens.Update(*ctx.tokensOut)
		}

		if len(out) != len(instr.Out) {
			return nil, tokens, fmt.Errorf("lowering %s: rule produced %d values, instruction has %d outputs",
				instr.Prim.Name(), len(out), len(instr.Out))
		}
		for i, v := range instr.Out {
			env[v] = out[i]
		}
	}

	outs := make([]Value, len(g.Outputs))
	for i, a := range g.Outputs {
		outs[i] = atomValue(fb, env, a)
	}
	return outs, tokens, nil
}

func atomValue(fb *FuncBuilder, env map[*ir.Var]Value, a ir.Atom) Value {
	switch at := a.(type) {
	case *ir.Var:
		return env[at]
	case ir.Lit:
		return fb.EmitConst(at.Value, at.DT)
	default:
		panic(fmt.Sprintf("unknown atom %T", a))
	}
}
