package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/fennecml/fennec/internal/transform"
)

// RunReplicated compiles the replicated graph once and executes it
// concurrently on every worker, each with its own execution context and
// its own slice of the inputs.
//
// Replicate has already rejected ordered effects, so no token is shared
// between workers; unordered effects fire once per worker, in no
// guaranteed cross-worker order. All workers have completed when
// RunReplicated returns.
func RunReplicated(ctx context.Context, cfg Config, r *transform.Replicated, argsPerWorker [][]Value) ([][]Value, error) {
	if len(argsPerWorker) != r.Workers {
		return nil, fmt.Errorf("replicated run: %d workers but %d argument slices", r.Workers, len(argsPerWorker))
	}

	c, err := Compile(cfg, r.Graph)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	results := make([][]Value, r.Workers)
	errs := make([]error, r.Workers)
	var wg sync.WaitGroup
	for w := 0; w < r.Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ec := NewExecContext()
			results[w], errs[w] = c.Call(ctx, ec, argsPerWorker[w]...)
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
