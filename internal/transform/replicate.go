package transform

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Replicated describes a graph validated for map-style execution across
// independent workers. Each worker runs the graph once over its own
// slice of the inputs; unordered effects fire once per worker.
type Replicated struct {
	Graph   *ir.Graph
	Workers int
}

// Replicate validates g for replication across workers.
//
// Ordered effects fail with ORDERING_UNSUPPORTED at construction time:
// workers execute independently and nothing could give their effect
// occurrences a cross-worker program order. Unordered effects forward
// unchanged. Lowerability is checked later, when the replicated graph is
// actually compiled.
func Replicate(reg *effects.Registry, g *ir.Graph, workers int) (*Replicated, error) {
	if workers < 1 {
		return nil, fmt.Errorf("replicate requires at least 1 worker, got %d", workers)
	}
	ordered := reg.Ordered(g.Effects)
	if !ordered.Empty() {
		return nil, ir.NewOrderingUnsupportedError("replicate", ordered)
	}
	return &Replicated{Graph: g, Workers: workers}, nil
}

// Effects returns the replicated graph's (unordered) effect set.
func (r *Replicated) Effects() effects.Set {
	return r.Graph.Effects
}
