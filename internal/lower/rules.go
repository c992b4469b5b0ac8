package lower

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Rule lowers one instruction into the current function, returning the
// program values for the instruction's outputs.
//
// A rule for an instruction with ordered effects receives the current
// token per ordered effect in ctx.TokensIn and must call
// ctx.SetTokensOut with an updated token set whose keys are exactly
// those ordered effects before returning. Rules for unordered-only or
// pure instructions receive an empty token set and need not call
// SetTokensOut.
type Rule func(ctx *RuleContext, in []Value) ([]Value, error)

// Rules is the registry of per-primitive lowering rules. Like the
// effect registry it is populated at setup time and read during
// lowering.
type Rules struct {
	m map[*ir.Primitive]Rule
}

// NewRules creates an empty rule registry.
func NewRules() *Rules {
	return &Rules{m: make(map[*ir.Primitive]Rule)}
}

// Register installs (or replaces) the rule for prim.
func (r *Rules) Register(prim *ir.Primitive, rule Rule) {
	r.m[prim] = rule
}

// Lookup returns the rule for prim.
func (r *Rules) Lookup(prim *ir.Primitive) (Rule, bool) {
	rule, ok := r.m[prim]
	return rule, ok
}

// Clone returns a copy of the registry. Tests replace single rules on a
// clone instead of mutating a shared fixture.
func (r *Rules) Clone() *Rules {
	out := NewRules()
	for p, rule := range r.m {
		out.m[p] = rule
	}
	return out
}

// ModuleContext is the per-program lowering state shared by all rule
// invocations: the output program, the effect registry, and the rule
// table.
type ModuleContext struct {
	reg     *effects.Registry
	rules   *Rules
	program *Program

	fnSeq int
}

// Registry returns the effect registry.
func (mc *ModuleContext) Registry() *effects.Registry { return mc.reg }

// Program returns the program under construction.
func (mc *ModuleContext) Program() *Program { return mc.program }

func (mc *ModuleContext) uniqueName(base string) string {
	mc.fnSeq++
	return fmt.Sprintf("%s_%d", base, mc.fnSeq)
}

// RuleContext is the per-instruction lowering context handed to rules.
type RuleContext struct {
	// FB emits ops into the function being lowered.
	FB *FuncBuilder

	// Instr is the instruction being lowered.
	Instr *ir.Instruction

	module    *ModuleContext
	ordered   effects.Set
	tokensIn  TokenSet
	tokensOut *TokenSet
}

// Module returns the shared per-program context.
func (ctx *RuleContext) Module() *ModuleContext { return ctx.module }

// OrderedEffects returns the instruction's ordered effects, the exact
// key set SetTokensOut must be called with.
func (ctx *RuleContext) OrderedEffects() effects.Set { return ctx.ordered }

// TokensIn returns the incoming token set: one token per ordered effect
// of the instruction, empty for unordered-only or pure instructions.
func (ctx *RuleContext) TokensIn() TokenSet { return ctx.tokensIn }

// SetTokensOut records the rule's updated tokens. Write-once per
// instruction lowering; the final value is validated against the
// instruction's ordered effects after the rule returns.
func (ctx *RuleContext) SetTokensOut(ts TokenSet) {
	ctx.tokensOut = &ts
}

// FuncBuilder appends ops to a function under construction.
type FuncBuilder struct {
	fn *Function
}

// Fn returns the function being built.
func (fb *FuncBuilder) Fn() *Function { return fb.fn }

// EmitConst materializes a scalar constant.
func (fb *FuncBuilder) EmitConst(v float64, dt ir.DType) Value {
	res := fb.fn.newValue(TensorType{Aval: ir.Scalar(dt)})
	fb.fn.push(&ConstOp{Result: res, Val: v, DT: dt})
	return res
}

// EmitBinary emits an elementwise binary op.
func (fb *FuncBuilder) EmitBinary(kind string, lhs, rhs Value) Value {
	res := fb.fn.newValue(lhs.Type)
	fb.fn.push(&BinaryOp{Result: res, Kind: kind, LHS: lhs, RHS: rhs})
	return res
}

// EmitSum emits a reduction to scalar.
func (fb *FuncBuilder) EmitSum(operand Value, dt ir.DType) Value {
	res := fb.fn.newValue(TensorType{Aval: ir.Scalar(dt)})
	fb.fn.push(&SumOp{Result: res, Operand: operand})
	return res
}

// EmitCreateToken synthesizes a fresh token for an ordered effect.
func (fb *FuncBuilder) EmitCreateToken(e effects.Effect) Value {
	res := fb.fn.newValue(TokenType{})
	fb.fn.push(&CreateTokenOp{Result: res, Effect: e})
	return res
}

// EmitHostCall emits a host-callback invocation. When ordered, the
// caller prepends the current token to args and the op's first result
// is the successor token.
func (fb *FuncBuilder) EmitHostCall(callback string, e effects.Effect, ordered bool, args []Value, resultTypes []Type) []Value {
	results := make([]Value, len(resultTypes))
	for i, t := range resultTypes {
		results[i] = fb.fn.newValue(t)
	}
	fb.fn.push(&HostCallOp{
		Callback: callback,
		Effect:   e,
		Ordered:  ordered,
		Args:     args,
		Results:  results,
	})
	return results
}

// EmitCall emits an application of another program function.
func (fb *FuncBuilder) EmitCall(callee *Function, args []Value) []Value {
	results := make([]Value, len(callee.ResultTypes))
	for i, t := range callee.ResultTypes {
		results[i] = fb.fn.newValue(t)
	}
	fb.fn.push(&CallOp{Callee: callee.Name, Args: args, Results: results})
	return results
}

// EmitIf emits a branch selection over functions with identical
// token-extended signatures.
func (fb *FuncBuilder) EmitIf(pred Value, branches []string, tokenCount int, args []Value, resultTypes []Type) []Value {
	results := make([]Value, len(resultTypes))
	for i, t := range resultTypes {
		results[i] = fb.fn.newValue(t)
	}
	fb.fn.push(&IfOp{Pred: pred, Branches: branches, TokenCount: tokenCount, Args: args, Results: results})
	return results
}

// EmitWhile emits a token-threaded loop.
func (fb *FuncBuilder) EmitWhile(condFn, bodyFn string, tokenCount int, args []Value, resultTypes []Type) []Value {
	results := make([]Value, len(resultTypes))
	for i, t := range resultTypes {
		results[i] = fb.fn.newValue(t)
	}
	fb.fn.push(&WhileOp{CondFn: condFn, BodyFn: bodyFn, TokenCount: tokenCount, Args: args, Results: results})
	return results
}

// EmitScan emits a token-threaded bounded iteration.
func (fb *FuncBuilder) EmitScan(bodyFn string, length, tokenCount int, args []Value, resultTypes []Type) []Value {
	results := make([]Value, len(resultTypes))
	for i, t := range resultTypes {
		results[i] = fb.fn.newValue(t)
	}
	fb.fn.push(&ScanOp{BodyFn: bodyFn, Length: length, TokenCount: tokenCount, Args: args, Results: results})
	return results
}

// Return terminates the function.
func (fb *FuncBuilder) Return(vals ...Value) {
	types := make([]Type, len(vals))
	for i, v := range vals {
		types[i] = v.Type
	}
	fb.fn.ResultTypes = types
	fb.fn.push(&ReturnOp{Values: vals})
}
