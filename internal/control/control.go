package control

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Param keys for construct instructions.
const (
	ParamBranches = "branches" // []*ir.Graph, cond
	ParamCond     = "cond"     // *ir.Graph, while
	ParamBody     = "body"     // *ir.Graph, while and scan
	ParamLength   = "length"   // int, scan trip count
)

// CondP is the structured-branch primitive. Branch sub-graphs live in
// the "branches" parameter; the first operand is the predicate.
var CondP = ir.NewPrimitive("cond").SetMultipleResults().SetAbstractEval(condEval)

// WhileP is the structured-loop primitive with "cond" and "body"
// sub-graph parameters.
var WhileP = ir.NewPrimitive("while").SetMultipleResults().SetAbstractEval(whileEval)

// ScanP is the bounded-iteration primitive with a "body" sub-graph
// parameter and a static "length".
var ScanP = ir.NewPrimitive("scan").SetMultipleResults().SetAbstractEval(scanEval)

// Cond traces an N-way branch. pred selects a branch (i1 scalar for the
// 2-way form, i64 index otherwise); every branch receives operands and
// must produce identical output descriptors and an identical effect set,
// each member allow-listed for the cond construct.
func Cond(b *ir.Builder, pred ir.Atom, branches []*ir.Graph, operands ...ir.Atom) ([]*ir.Var, error) {
	if len(branches) < 2 {
		return nil, fmt.Errorf("cond requires at least 2 branches, got %d", len(branches))
	}
	ref := branches[0].Effects
	for _, br := range branches[1:] {
		if !br.Effects.Equal(ref) {
			// A branch introducing or dropping an effect relative to its
			// siblings makes the construct's effect set ambiguous.
			return nil, ir.NewEffectsUnsupportedError("cond", symmetricDiff(ref, br.Effects))
		}
	}
	if err := checkAllowed(b.Registry(), effects.ConstructCond, "cond", ref); err != nil {
		return nil, err
	}
	in := append([]ir.Atom{pred}, operands...)
	return b.Bind(CondP, in, ir.Params{ParamBranches: branches})
}

// While traces a loop. cond maps the carry to an i1 scalar; body maps
// the carry to the next carry. Both effect sets must be within the while
// allow-list.
func While(b *ir.Builder, cond, body *ir.Graph, init ...ir.Atom) ([]*ir.Var, error) {
	if err := checkAllowed(b.Registry(), effects.ConstructWhile, "while", cond.Effects); err != nil {
		return nil, err
	}
	if err := checkAllowed(b.Registry(), effects.ConstructWhile, "while", body.Effects); err != nil {
		return nil, err
	}
	return b.Bind(WhileP, init, ir.Params{ParamCond: cond, ParamBody: body})
}

// Scan traces length steps of body over xs with a carried state. body
// maps (carry..., x) to (carry..., y); Scan returns the final carry and
// the stacked ys. The body's effect set must be within the scan
// allow-list.
func Scan(b *ir.Builder, body *ir.Graph, length int, init []ir.Atom, xs ir.Atom) ([]*ir.Var, error) {
	if err := checkAllowed(b.Registry(), effects.ConstructScan, "scan", body.Effects); err != nil {
		return nil, err
	}
	in := append(append([]ir.Atom{}, init...), xs)
	return b.Bind(ScanP, in, ir.Params{ParamBody: body, ParamLength: length})
}

// checkAllowed rejects any effect outside the construct kind's
// allow-list. Ordered effects get no special path: an ordered effect is
// permitted exactly when it has been allow-listed for the kind.
func checkAllowed(reg *effects.Registry, kind effects.ConstructKind, construct string, effs effects.Set) error {
	disallowed := effs.Filter(func(e effects.Effect) bool {
		return !reg.IsAllowedInConstruct(kind, e)
	})
	if !disallowed.Empty() {
		return ir.NewEffectsUnsupportedError(construct, disallowed)
	}
	return nil
}

func symmetricDiff(a, b effects.Set) effects.Set {
	onlyA := a.Filter(func(e effects.Effect) bool { return !b.Contains(e) })
	onlyB := b.Filter(func(e effects.Effect) bool { return !a.Contains(e) })
	return onlyA.Union(onlyB)
}

func condEval(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, effects.Set, error) {
	branches := params.Graphs(ParamBranches)
	if len(branches) < 2 {
		return nil, effects.Set{}, fmt.Errorf("cond requires at least 2 branches")
	}
	if len(in) < 1 {
		return nil, effects.Set{}, fmt.Errorf("cond requires a predicate operand")
	}
	var effs effects.Set
	ref := branches[0]
	for _, br := range branches {
		if len(br.Outputs) != len(ref.Outputs) {
			return nil, effects.Set{}, fmt.Errorf("cond branches disagree on output arity")
		}
		if len(br.Inputs) != len(in)-1 {
			return nil, effects.Set{}, fmt.Errorf("cond branch takes %d inputs, construct passes %d",
				len(br.Inputs), len(in)-1)
		}
		effs = effs.Union(br.Effects)
	}
	out := make([]ir.AbstractValue, len(ref.Outputs))
	for i, a := range ref.Outputs {
		out[i] = a.Aval()
	}
	return out, effs, nil
}

func whileEval(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, effects.Set, error) {
	cond := params.Graph(ParamCond)
	body := params.Graph(ParamBody)
	if cond == nil || body == nil {
		return nil, effects.Set{}, fmt.Errorf("while requires cond and body graphs")
	}
	if len(cond.Outputs) != 1 || !cond.Outputs[0].Aval().Equal(ir.Scalar(ir.I1)) {
		return nil, effects.Set{}, fmt.Errorf("while cond must produce a single i1 scalar")
	}
	if len(body.Inputs) != len(in) || len(body.Outputs) != len(in) {
		return nil, effects.Set{}, fmt.Errorf("while body must map the carry to itself")
	}
	out := make([]ir.AbstractValue, len(in))
	copy(out, in)
	return out, cond.Effects.Union(body.Effects), nil
}

func scanEval(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, effects.Set, error) {
	body := params.Graph(ParamBody)
	if body == nil {
		return nil, effects.Set{}, fmt.Errorf("scan requires a body graph")
	}
	length := params.Int(ParamLength)
	if length < 0 {
		return nil, effects.Set{}, fmt.Errorf("scan length must be non-negative, got %d", length)
	}
	if len(in) < 1 {
		return nil, effects.Set{}, fmt.Errorf("scan requires a carry and an xs operand")
	}
	carryLen := len(in) - 1
	if len(body.Inputs) != carryLen+1 {
		return nil, effects.Set{}, fmt.Errorf("scan body takes %d inputs, construct passes %d",
			len(body.Inputs), carryLen+1)
	}
	if len(body.Outputs) < carryLen {
		return nil, effects.Set{}, fmt.Errorf("scan body must return the carry")
	}

	out := make([]ir.AbstractValue, 0, len(body.Outputs))
	for i := 0; i < carryLen; i++ {
		out = append(out, in[i])
	}
	// Per-step extras stack along a new leading dimension.
	for _, a := range body.Outputs[carryLen:] {
		aval := a.Aval()
		out = append(out, ir.AbstractValue{
			DType: aval.DType,
			Shape: append([]int{length}, aval.Shape...),
		})
	}
	return out, body.Effects, nil
}
