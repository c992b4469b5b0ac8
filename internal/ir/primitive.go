package ir

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
)

// Params carries the static parameters of one primitive application
// (effect handles, embedded subgraphs, callback ids). Params are fixed
// at bind time and never mutated afterwards.
type Params map[string]any

// Effect returns the effect-handle parameter under key, or the zero
// handle if absent.
func (p Params) Effect(key string) effects.Effect {
	e, _ := p[key].(effects.Effect)
	return e
}

// Graph returns the subgraph parameter under key, or nil if absent.
func (p Params) Graph(key string) *Graph {
	g, _ := p[key].(*Graph)
	return g
}

// Graphs returns the subgraph-list parameter under key, or nil if absent.
func (p Params) Graphs(key string) []*Graph {
	gs, _ := p[key].([]*Graph)
	return gs
}

// String returns the string parameter under key, or "" if absent.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the int parameter under key, or 0 if absent.
func (p Params) Int(key string) int {
	n, _ := p[key].(int)
	return n
}

// AbstractEval computes a primitive application's output descriptors and
// its effect set from the input descriptors and static parameters.
// This is the sole way effects enter the IR.
type AbstractEval func(in []AbstractValue, params Params) ([]AbstractValue, effects.Set, error)

// Primitive is a registered operation. Identity is pointer identity:
// two primitives with the same name are distinct registrations.
type Primitive struct {
	name         string
	multiResults bool
	abstractEval AbstractEval
}

// NewPrimitive registers a primitive under the given name.
func NewPrimitive(name string) *Primitive {
	return &Primitive{name: name}
}

// Name returns the primitive's name.
func (p *Primitive) Name() string { return p.name }

// SetMultipleResults marks the primitive as producing a result list
// rather than a single value.
func (p *Primitive) SetMultipleResults() *Primitive {
	p.multiResults = true
	return p
}

// MultipleResults reports whether the primitive produces a result list.
func (p *Primitive) MultipleResults() bool { return p.multiResults }

// SetAbstractEval installs the abstract-evaluation rule.
func (p *Primitive) SetAbstractEval(fn AbstractEval) *Primitive {
	p.abstractEval = fn
	return p
}

// PureEval wraps an effect-free shape rule as an AbstractEval.
func PureEval(fn func(in []AbstractValue, params Params) ([]AbstractValue, error)) AbstractEval {
	return func(in []AbstractValue, params Params) ([]AbstractValue, effects.Set, error) {
		out, err := fn(in, params)
		return out, effects.Set{}, err
	}
}

func (p *Primitive) evalAbstract(in []AbstractValue, params Params) ([]AbstractValue, effects.Set, error) {
	if p.abstractEval == nil {
		return nil, effects.Set{}, fmt.Errorf("primitive %q has no abstract-evaluation rule", p.name)
	}
	return p.abstractEval(in, params)
}
