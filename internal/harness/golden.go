package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderResult renders a scenario result as deterministic text for
// golden comparison. Context ids and token ids are excluded; sequence
// numbers come from the run's own clock, which starts at zero per
// compiled artifact.
func RenderResult(result *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", result.ScenarioName)
	for i, call := range result.Calls {
		fmt.Fprintf(&b, "call %d: in=%s out=%s\n", i, renderBuffers(call.Inputs), renderBuffers(call.Outputs))
	}
	fmt.Fprintf(&b, "log: %v\n", result.Log)
	fmt.Fprintf(&b, "firings:\n")
	for _, rec := range result.Firings {
		fmt.Fprintf(&b, "  seq=%d effect=%s callback=%s args=%v\n",
			rec.Seq, rec.Effect, rec.Callback, rec.Args)
	}
	return b.String()
}

func renderBuffers(bufs [][]float64) string {
	parts := make([]string, len(bufs))
	for i, buf := range bufs {
		parts[i] = fmt.Sprintf("%v", buf)
	}
	return strings.Join(parts, " ")
}

// RunWithGolden executes a scenario and compares the rendered trace
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(RenderResult(result)))
	return nil
}
