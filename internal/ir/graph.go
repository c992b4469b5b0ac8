package ir

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
)

// Instruction is one primitive application inside a graph.
// It owns a fixed effect set computed at bind time and is immutable
// after creation.
type Instruction struct {
	Prim    *Primitive
	In      []Atom
	Out     []*Var
	Params  Params
	Effects effects.Set
}

// Graph is an ordered, acyclic sequence of instructions plus the
// graph's declared effect set. The declared set must equal the union of
// the instructions' effect sets; Check enforces the subset direction.
type Graph struct {
	Inputs  []*Var
	Instrs  []*Instruction
	Outputs []Atom
	Effects effects.Set
}

// Builder traces instructions into a graph. It is the only way to
// construct Vars and Instructions, which gives every Var a defining
// point and every Instruction an effect set from its primitive's
// abstract-evaluation rule.
//
// A Builder is single-use: trace inputs, bind instructions, Build.
// Builders are not safe for concurrent use.
type Builder struct {
	reg    *effects.Registry
	nextID int
	inputs []*Var
	instrs []*Instruction
}

// NewBuilder creates a builder that consults reg for effect
// classification during construct binding.
func NewBuilder(reg *effects.Registry) *Builder {
	return &Builder{reg: reg}
}

// Registry returns the effect registry the builder was created with.
func (b *Builder) Registry() *effects.Registry { return b.reg }

// Input declares a graph input with the given abstract value.
func (b *Builder) Input(aval AbstractValue) *Var {
	v := b.newVar(aval)
	b.inputs = append(b.inputs, v)
	return v
}

func (b *Builder) newVar(aval AbstractValue) *Var {
	v := &Var{id: b.nextID, aval: aval}
	b.nextID++
	return v
}

// Bind applies a primitive to the given operands, running its
// abstract-evaluation rule to obtain output descriptors and the
// instruction's effect set, and appends the instruction to the trace.
func (b *Builder) Bind(prim *Primitive, in []Atom, params Params) ([]*Var, error) {
	if params == nil {
		params = Params{}
	}
	avalsIn := make([]AbstractValue, len(in))
	for i, a := range in {
		if a == nil {
			return nil, fmt.Errorf("bind %s: operand %d is nil", prim.Name(), i)
		}
		avalsIn[i] = a.Aval()
	}

	avalsOut, effs, err := prim.evalAbstract(avalsIn, params)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", prim.Name(), err)
	}

	out := make([]*Var, len(avalsOut))
	for i, aval := range avalsOut {
		out[i] = b.newVar(aval)
	}
	b.instrs = append(b.instrs, &Instruction{
		Prim:    prim,
		In:      in,
		Out:     out,
		Params:  params,
		Effects: effs,
	})
	return out, nil
}

// Build finalizes the trace into a Graph whose declared effect set is
// the union of all instruction effect sets.
func (b *Builder) Build(outputs ...Atom) (*Graph, error) {
	var effs effects.Set
	for _, instr := range b.instrs {
		effs = effs.Union(instr.Effects)
	}
	g := &Graph{
		Inputs:  b.inputs,
		Instrs:  b.instrs,
		Outputs: outputs,
		Effects: effs,
	}
	if err := Check(g); err != nil {
		return nil, err
	}
	return g, nil
}

// UnionEffects recomputes the union of the graph's instruction effect
// sets. For a well-formed graph this equals g.Effects; re-validation is
// idempotent.
func (g *Graph) UnionEffects() effects.Set {
	var effs effects.Set
	for _, instr := range g.Instrs {
		effs = effs.Union(instr.Effects)
	}
	return effs
}

// WithEffects returns a shallow copy of g with a replacement declared
// effect set. Used by tests to construct ill-typed graphs and by
// transforms that narrow a graph they own.
func (g *Graph) WithEffects(effs effects.Set) *Graph {
	cp := *g
	cp.Effects = effs
	return &cp
}
