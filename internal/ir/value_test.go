package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbstractValueEqual(t *testing.T) {
	assert.True(t, Scalar(F64).Equal(Scalar(F64)))
	assert.False(t, Scalar(F64).Equal(Scalar(I64)))
	assert.True(t, Vec(F64, 3).Equal(Vec(F64, 3)))
	assert.False(t, Vec(F64, 3).Equal(Vec(F64, 4)))
	assert.False(t, Scalar(F64).Equal(Vec(F64, 1)))
}

func TestAbstractValueString(t *testing.T) {
	assert.Equal(t, "f64", Scalar(F64).String())
	assert.Equal(t, "i1[4]", Vec(I1, 4).String())
	av := AbstractValue{DType: F32, Shape: []int{500, 500}}
	assert.Equal(t, "f32[500x500]", av.String())
}

func TestAbstractValueElems(t *testing.T) {
	assert.Equal(t, 1, Scalar(F64).Elems())
	assert.Equal(t, 5, Vec(F64, 5).Elems())
	av := AbstractValue{DType: F64, Shape: []int{2, 3}}
	assert.Equal(t, 6, av.Elems())
}

func TestLitAval(t *testing.T) {
	l := F64Lit(2.5)
	assert.Equal(t, 2.5, l.Value)
	assert.Equal(t, Scalar(F64), l.Aval())
}
