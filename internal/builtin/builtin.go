// Package builtin registers the primitive set the effect subsystem is
// exercised with: a handful of elementwise numeric operations, the bare
// effect primitive, and the host-callback primitive.
//
// The numeric vocabulary is deliberately tiny. The subsystem under test
// is effect tracking and token threading; numeric semantics belong to an
// external op set, and these few primitives exist only so traced graphs
// have something to compute.
package builtin

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Param keys shared by the effectful primitives.
const (
	ParamEffect   = "effect"   // effects.Effect
	ParamCallback = "callback" // string: registered host-callback id
	ParamOuts     = "outs"     // []ir.AbstractValue: callback result descriptors
)

// Elementwise binary primitives. Operand shapes must match; the result
// takes the operand descriptor.
var (
	Add = ir.NewPrimitive("add").SetAbstractEval(ir.PureEval(binaryEval("add")))
	Sub = ir.NewPrimitive("sub").SetAbstractEval(ir.PureEval(binaryEval("sub")))
	Mul = ir.NewPrimitive("mul").SetAbstractEval(ir.PureEval(binaryEval("mul")))
)

// Sum reduces a value to a scalar of the same dtype.
var Sum = ir.NewPrimitive("sum").SetAbstractEval(ir.PureEval(
	func(in []ir.AbstractValue, _ ir.Params) ([]ir.AbstractValue, error) {
		if len(in) != 1 {
			return nil, fmt.Errorf("sum expects 1 operand, got %d", len(in))
		}
		return []ir.AbstractValue{ir.Scalar(in[0].DType)}, nil
	}))

// Effect is the bare effectful primitive: no operands, no results, one
// declared effect taken from its "effect" parameter. It exists to mark a
// side-effect occurrence in a trace.
var Effect = ir.NewPrimitive("effect").SetMultipleResults().SetAbstractEval(
	func(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, effects.Set, error) {
		e := params.Effect(ParamEffect)
		if e.Zero() {
			return nil, effects.Set{}, fmt.Errorf("effect primitive requires an %q parameter", ParamEffect)
		}
		return nil, effects.NewSet(e), nil
	})

// HostCall invokes a registered host function with the instruction's
// operands, producing the declared result descriptors and the declared
// effect. The callback itself is an opaque facility; ordered effects get
// a token threaded through the call at lowering time.
var HostCall = ir.NewPrimitive("host_call").SetMultipleResults().SetAbstractEval(
	func(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, effects.Set, error) {
		if params.String(ParamCallback) == "" {
			return nil, effects.Set{}, fmt.Errorf("host_call requires a %q parameter", ParamCallback)
		}
		e := params.Effect(ParamEffect)
		if e.Zero() {
			return nil, effects.Set{}, fmt.Errorf("host_call requires an %q parameter", ParamEffect)
		}
		outs, _ := params[ParamOuts].([]ir.AbstractValue)
		return outs, effects.NewSet(e), nil
	})

// ByName resolves a builtin primitive from its name. Used by the CUE
// front end.
func ByName(name string) (*ir.Primitive, bool) {
	switch name {
	case "add":
		return Add, true
	case "sub":
		return Sub, true
	case "mul":
		return Mul, true
	case "sum":
		return Sum, true
	case "effect":
		return Effect, true
	case "host_call":
		return HostCall, true
	}
	return nil, false
}

func binaryEval(name string) func(in []ir.AbstractValue, params ir.Params) ([]ir.AbstractValue, error) {
	return func(in []ir.AbstractValue, _ ir.Params) ([]ir.AbstractValue, error) {
		if len(in) != 2 {
			return nil, fmt.Errorf("%s expects 2 operands, got %d", name, len(in))
		}
		if !in[0].Equal(in[1]) {
			return nil, fmt.Errorf("%s operand mismatch: %s vs %s", name, in[0], in[1])
		}
		return []ir.AbstractValue{in[0]}, nil
	}
}
