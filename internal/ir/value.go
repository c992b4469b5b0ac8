package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// DType identifies the element type of an abstract value.
type DType string

const (
	F64 DType = "f64"
	F32 DType = "f32"
	I64 DType = "i64"
	I1  DType = "i1"
)

// ValidDTypes defines the allowed element types.
var ValidDTypes = map[DType]bool{
	F64: true,
	F32: true,
	I64: true,
	I1:  true,
}

// AbstractValue describes the shape and element type of a traced value.
// A rank-0 shape is a scalar.
type AbstractValue struct {
	DType DType
	Shape []int
}

// Scalar builds a rank-0 abstract value.
func Scalar(dt DType) AbstractValue {
	return AbstractValue{DType: dt}
}

// Vec builds a rank-1 abstract value of length n.
func Vec(dt DType, n int) AbstractValue {
	return AbstractValue{DType: dt, Shape: []int{n}}
}

// Elems returns the element count.
func (a AbstractValue) Elems() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Equal reports dtype and shape equality.
func (a AbstractValue) Equal(b AbstractValue) bool {
	if a.DType != b.DType || len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// String renders as "f64" or "f64[500x500]".
func (a AbstractValue) String() string {
	if len(a.Shape) == 0 {
		return string(a.DType)
	}
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%s[%s]", a.DType, strings.Join(dims, "x"))
}

// Atom is a sealed interface over instruction operands.
// Only *Var and Lit implement it.
type Atom interface {
	Aval() AbstractValue
	atom() // sealed
}

// Var is a variable produced by a graph input or an instruction output.
// Identity is pointer identity; the numeric id exists for rendering.
type Var struct {
	id   int
	aval AbstractValue
}

func (*Var) atom() {}

// Aval returns the variable's abstract value.
func (v *Var) Aval() AbstractValue { return v.aval }

// ID returns the builder-assigned variable number.
func (v *Var) ID() int { return v.id }

// Lit is a literal scalar operand.
type Lit struct {
	Value float64
	DT    DType
}

func (Lit) atom() {}

// Aval returns the literal's abstract value (always a scalar).
func (l Lit) Aval() AbstractValue { return Scalar(l.DT) }

// F64Lit builds a float64 scalar literal.
func F64Lit(v float64) Lit {
	return Lit{Value: v, DT: F64}
}
