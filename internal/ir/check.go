package ir

import "fmt"

// Check validates a graph's well-formedness:
//
//  1. Every instruction's effect set is a subset of the graph's declared
//     effect set (the core invariant; violation is EFFECT_SUBSET).
//  2. Every operand Var is defined before use, either as a graph input
//     or as an earlier instruction's output.
//  3. Every graph output refers to a defined value.
//
// Check is a pure read; re-validating a graph is idempotent.
func Check(g *Graph) error {
	defined := make(map[*Var]bool, len(g.Inputs))
	for _, v := range g.Inputs {
		defined[v] = true
	}

	for i, instr := range g.Instrs {
		if !instr.Effects.SubsetOf(g.Effects) {
			return NewEffectSubsetError(instr.Effects, g.Effects)
		}
		for j, a := range instr.In {
			v, ok := a.(*Var)
			if !ok {
				continue // literals are always in scope
			}
			if !defined[v] {
				return fmt.Errorf("instruction %d (%s): operand %d (v%d) used before definition",
					i, instr.Prim.Name(), j, v.ID())
			}
		}
		for _, v := range instr.Out {
			defined[v] = true
		}
	}

	for i, a := range g.Outputs {
		v, ok := a.(*Var)
		if !ok {
			continue
		}
		if !defined[v] {
			return fmt.Errorf("graph output %d (v%d) refers to an undefined value", i, v.ID())
		}
	}
	return nil
}
