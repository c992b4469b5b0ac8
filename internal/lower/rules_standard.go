package lower

import (
	"fmt"

	"github.com/fennecml/fennec/internal/builtin"
	"github.com/fennecml/fennec/internal/control"
	"github.com/fennecml/fennec/internal/ir"
)

// StandardRules returns the default rule registry covering the builtin
// primitive set and the structured-control constructs. Callers clone
// and extend it rather than mutating the result of repeated calls.
func StandardRules() *Rules {
	r := NewRules()
	r.Register(builtin.Add, binaryRule("add"))
	r.Register(builtin.Sub, binaryRule("sub"))
	r.Register(builtin.Mul, binaryRule("mul"))
	r.Register(builtin.Sum, sumRule)
	r.Register(builtin.Effect, TrivialEffectRule)
	r.Register(builtin.HostCall, hostCallRule)
	r.Register(control.CallP, callRule)
	r.Register(control.CondP, condRule)
	r.Register(control.WhileP, whileRule)
	r.Register(control.ScanP, scanRule)
	return r
}

// TrivialEffectRule passes the incoming tokens straight through. It is
// the lowering for the bare effect primitive, which marks an effect
// occurrence without emitting backend work of its own.
func TrivialEffectRule(ctx *RuleContext, _ []Value) ([]Value, error) {
	ctx.SetTokensOut(ctx.TokensIn())
	return nil, nil
}

func binaryRule(kind string) Rule {
	return func(ctx *RuleContext, in []Value) ([]Value, error) {
		return []Value{ctx.FB.EmitBinary(kind, in[0], in[1])}, nil
	}
}

func sumRule(ctx *RuleContext, in []Value) ([]Value, error) {
	return []Value{ctx.FB.EmitSum(in[0], ctx.Instr.Out[0].Aval().DType)}, nil
}

// hostCallRule lowers a host-callback invocation. For an ordered effect
// the current token is prepended to the callback's arguments and its
// successor prepended to the results; unordered calls thread nothing.
func hostCallRule(ctx *RuleContext, in []Value) ([]Value, error) {
	callback := ctx.Instr.Params.String(builtin.ParamCallback)
	e := ctx.Instr.Params.Effect(builtin.ParamEffect)

	outTypes := make([]Type, 0, len(ctx.Instr.Out)+1)
	if ctx.Module().Registry().IsOrdered(e) {
		outTypes = append(outTypes, TokenType{})
	}
	for _, v := range ctx.Instr.Out {
		outTypes = append(outTypes, TensorType{Aval: v.Aval()})
	}

	if !ctx.Module().Registry().IsOrdered(e) {
		return ctx.FB.EmitHostCall(callback, e, false, in, outTypes), nil
	}

	tokenIn, ok := ctx.TokensIn().Get(e)
	if !ok {
		return nil, fmt.Errorf("host_call: no incoming token for ordered effect %s", e)
	}
	args := append([]Value{tokenIn.Value()}, in...)
	res := ctx.FB.EmitHostCall(callback, e, true, args, outTypes)
	ctx.SetTokensOut(ctx.TokensIn().With(e, Token{v: res[0]}))
	return res[1:], nil
}

// callRule lowers the callee as its own function and forwards the
// instruction's tokens through the call.
func callRule(ctx *RuleContext, in []Value) ([]Value, error) {
	callee := ctx.Instr.Params.Graph(control.ParamCallee)
	ordered := ctx.OrderedEffects()

	fn, err := ctx.Module().EmitGraphAsFunction("call_"+fnBase(callee), callee, ordered)
	if err != nil {
		return nil, err
	}

	args := tokenValues(ctx.TokensIn())
	args = append(args, in...)
	res := ctx.FB.EmitCall(fn, args)

	return ctx.splitTokensOut(res)
}

// condRule lowers every branch with the same token-extended signature
// and threads the instruction's tokens through the selected branch.
func condRule(ctx *RuleContext, in []Value) ([]Value, error) {
	branches := ctx.Instr.Params.Graphs(control.ParamBranches)
	ordered := ctx.OrderedEffects()

	names := make([]string, len(branches))
	for i, br := range branches {
		fn, err := ctx.Module().EmitGraphAsFunction("branch", br, ordered)
		if err != nil {
			return nil, err
		}
		names[i] = fn.Name
	}

	args := tokenValues(ctx.TokensIn())
	args = append(args, in[1:]...) // in[0] is the predicate
	res := ctx.FB.EmitIf(in[0], names, ordered.Len(), args, ctx.resultTypesWithTokens())
	return ctx.splitTokensOut(res)
}

// whileRule lowers the condition and body as functions whose signatures
// thread the loop's tokens as loop-carried values.
func whileRule(ctx *RuleContext, in []Value) ([]Value, error) {
	cond := ctx.Instr.Params.Graph(control.ParamCond)
	body := ctx.Instr.Params.Graph(control.ParamBody)
	ordered := ctx.OrderedEffects()

	condFn, err := ctx.Module().EmitGraphAsFunction("while_cond", cond, ordered)
	if err != nil {
		return nil, err
	}
	bodyFn, err := ctx.Module().EmitGraphAsFunction("while_body", body, ordered)
	if err != nil {
		return nil, err
	}

	args := tokenValues(ctx.TokensIn())
	args = append(args, in...)
	res := ctx.FB.EmitWhile(condFn.Name, bodyFn.Name, ordered.Len(), args, ctx.resultTypesWithTokens())
	return ctx.splitTokensOut(res)
}

// scanRule lowers the per-step body as a function threading the scan's
// tokens through every step.
func scanRule(ctx *RuleContext, in []Value) ([]Value, error) {
	body := ctx.Instr.Params.Graph(control.ParamBody)
	length := ctx.Instr.Params.Int(control.ParamLength)
	ordered := ctx.OrderedEffects()

	bodyFn, err := ctx.Module().EmitGraphAsFunction("scan_body", body, ordered)
	if err != nil {
		return nil, err
	}

	args := tokenValues(ctx.TokensIn())
	args = append(args, in...)
	res := ctx.FB.EmitScan(bodyFn.Name, length, ordered.Len(), args, ctx.resultTypesWithTokens())
	return ctx.splitTokensOut(res)
}

// resultTypesWithTokens builds [tokens..., instruction outputs...] for
// a construct's result signature.
func (ctx *RuleContext) resultTypesWithTokens() []Type {
	types := make([]Type, 0, ctx.ordered.Len()+len(ctx.Instr.Out))
	for i := 0; i < ctx.ordered.Len(); i++ {
		types = append(types, TokenType{})
	}
	for _, v := range ctx.Instr.Out {
		types = append(types, TensorType{Aval: v.Aval()})
	}
	return types
}

// splitTokensOut peels the leading token results off a construct's
// result list, records them as the tokens out, and returns the rest.
func (ctx *RuleContext) splitTokensOut(res []Value) ([]Value, error) {
	n := ctx.ordered.Len()
	if n == 0 {
		return res, nil
	}
	ts := ctx.TokensIn()
	for i, e := range ctx.ordered.Slice() {
		ts = ts.With(e, Token{v: res[i]})
	}
	ctx.SetTokensOut(ts)
	return res[n:], nil
}

func tokenValues(ts TokenSet) []Value {
	out := make([]Value, 0, ts.Len())
	for _, e := range ts.Effects() {
		t, _ := ts.Get(e)
		out = append(out, t.Value())
	}
	return out
}

func fnBase(g *ir.Graph) string {
	if len(g.Instrs) > 0 {
		return g.Instrs[0].Prim.Name()
	}
	return "empty"
}
