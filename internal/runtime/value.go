package runtime

import (
	"fmt"

	"github.com/fennecml/fennec/internal/ir"
)

// Value is a concrete runtime value: a flat float64 buffer with its
// abstract descriptor. Booleans and integers are carried in the same
// buffer; the descriptor's dtype says how to read them.
type Value struct {
	Aval ir.AbstractValue
	Data []float64
}

// ScalarValue builds an f64 scalar.
func ScalarValue(v float64) Value {
	return Value{Aval: ir.Scalar(ir.F64), Data: []float64{v}}
}

// BoolValue builds an i1 scalar.
func BoolValue(b bool) Value {
	v := 0.0
	if b {
		v = 1.0
	}
	return Value{Aval: ir.Scalar(ir.I1), Data: []float64{v}}
}

// VecValue builds an f64 vector.
func VecValue(vs ...float64) Value {
	data := make([]float64, len(vs))
	copy(data, vs)
	return Value{Aval: ir.Vec(ir.F64, len(vs)), Data: data}
}

// Scalar returns the single element of a rank-0 value.
func (v Value) Scalar() float64 {
	return v.Data[0]
}

// Bool reads the value as a predicate.
func (v Value) Bool() bool {
	return v.Data[0] != 0
}

// String renders the value for diagnostics.
func (v Value) String() string {
	if len(v.Aval.Shape) == 0 {
		return fmt.Sprintf("%v:%s", v.Data[0], v.Aval.DType)
	}
	return fmt.Sprintf("%v:%s", v.Data, v.Aval)
}
