package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Domain prefix for content-addressed graph identity.
// Version suffix enables future format migration.
const domainGraph = "fennec/graph/v1"

// Fingerprint computes a content hash of the graph's canonical
// rendering. Two traces of the same program produce the same
// fingerprint; the hash keys compiled-artifact caches and the effect
// journal's program column.
func Fingerprint(g *Graph) string {
	h := sha256.New()
	h.Write([]byte(domainGraph))
	h.Write([]byte{0x00}) // separator prevents domain/data ambiguity
	h.Write([]byte(Render(g)))
	return hex.EncodeToString(h.Sum(nil))
}

// Render produces a deterministic one-graph-per-call textual form used
// for fingerprinting and debugging. Nested subgraphs render inline,
// indented under their owning instruction.
func Render(g *Graph) string {
	var sb strings.Builder
	renderGraph(&sb, g, "")
	return sb.String()
}

func renderGraph(sb *strings.Builder, g *Graph, indent string) {
	sb.WriteString(indent + "graph(")
	for i, v := range g.Inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "v%d: %s", v.ID(), v.Aval())
	}
	fmt.Fprintf(sb, ") effects=%s {\n", g.Effects)

	for _, instr := range g.Instrs {
		sb.WriteString(indent + "  ")
		for i, v := range instr.Out {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "v%d", v.ID())
		}
		if len(instr.Out) > 0 {
			sb.WriteString(" = ")
		}
		sb.WriteString(instr.Prim.Name())
		renderParams(sb, instr.Params)
		sb.WriteString("(")
		for i, a := range instr.In {
			if i > 0 {
				sb.WriteString(", ")
			}
			renderAtom(sb, a)
		}
		sb.WriteString(")")
		if !instr.Effects.Empty() {
			fmt.Fprintf(sb, " effects=%s", instr.Effects)
		}
		sb.WriteString("\n")
		for _, sub := range subgraphs(instr.Params) {
			renderGraph(sb, sub, indent+"    ")
		}
	}

	sb.WriteString(indent + "  return ")
	for i, a := range g.Outputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		renderAtom(sb, a)
	}
	sb.WriteString("\n" + indent + "}\n")
}

func renderAtom(sb *strings.Builder, a Atom) {
	switch at := a.(type) {
	case *Var:
		fmt.Fprintf(sb, "v%d", at.ID())
	case Lit:
		fmt.Fprintf(sb, "%v:%s", at.Value, at.DT)
	}
}

// renderParams writes scalar params in sorted key order; subgraph params
// render separately after the instruction line.
func renderParams(sb *strings.Builder, params Params) {
	keys := make([]string, 0, len(params))
	for k := range params {
		switch params[k].(type) {
		case *Graph, []*Graph:
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)
	sb.WriteString("[")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%s=%v", k, params[k])
	}
	sb.WriteString("]")
}

// subgraphs collects subgraph params in sorted key order so rendering
// stays deterministic.
func subgraphs(params Params) []*Graph {
	keys := make([]string, 0, len(params))
	for k := range params {
		switch params[k].(type) {
		case *Graph, []*Graph:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []*Graph
	for _, k := range keys {
		switch v := params[k].(type) {
		case *Graph:
			out = append(out, v)
		case []*Graph:
			out = append(out, v...)
		}
	}
	return out
}
