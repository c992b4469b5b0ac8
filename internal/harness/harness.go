package harness

import (
	"context"
	"fmt"

	"github.com/fennecml/fennec/internal/compiler"
	"github.com/fennecml/fennec/internal/lower"
	"github.com/fennecml/fennec/internal/runtime"
	"github.com/fennecml/fennec/internal/testutil"
)

// Result captures everything a scenario run observed.
type Result struct {
	ScenarioName string
	Module       *compiler.Module
	Calls        []CallResult
	Log          []float64
	Firings      []runtime.Record
}

// CallResult is the outcome of one invocation.
type CallResult struct {
	Inputs  [][]float64
	Outputs [][]float64
}

// Run executes a scenario: load and compile the module, bind the
// declared callbacks to a shared external log, invoke it once per call
// step in a single execution context, then block until all outstanding
// ordered effects complete.
func Run(scenario *Scenario) (*Result, error) {
	mod, err := compiler.Load(scenario.Module)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	collector := testutil.NewLogCollector()
	callbacks := runtime.NewCallbackRegistry()
	for _, id := range scenario.Callbacks {
		callbacks.Register(id, collector.Callback())
	}

	sink := testutil.NewMemorySink()
	store := runtime.NewTokenStore()
	compiled, err := runtime.Compile(runtime.Config{
		Registry:  mod.Registry,
		Rules:     lower.StandardRules(),
		Callbacks: callbacks,
		Store:     store,
		Sink:      sink,
	}, mod.Graph)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	defer compiled.Close()

	ctx := context.Background()
	ec := runtime.NewExecContext()
	result := &Result{ScenarioName: scenario.Name, Module: mod}

	for i, call := range scenario.Calls {
		if len(call.Inputs) != len(mod.Graph.Inputs) {
			return nil, fmt.Errorf("scenario %s: calls[%d] supplies %d inputs, module takes %d",
				scenario.Name, i, len(call.Inputs), len(mod.Graph.Inputs))
		}
		args := make([]runtime.Value, len(call.Inputs))
		for j, data := range call.Inputs {
			aval := mod.Graph.Inputs[j].Aval()
			if len(data) != aval.Elems() {
				return nil, fmt.Errorf("scenario %s: calls[%d] input %d has %d elements, %s wants %d",
					scenario.Name, i, j, len(data), aval, aval.Elems())
			}
			args[j] = runtime.Value{Aval: aval, Data: data}
		}

		outs, err := compiled.Call(ctx, ec, args...)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: calls[%d]: %w", scenario.Name, i, err)
		}
		cr := CallResult{Inputs: call.Inputs}
		for _, o := range outs {
			cr.Outputs = append(cr.Outputs, o.Data)
		}
		result.Calls = append(result.Calls, cr)
	}

	// Ordered callbacks may still be draining; the log and journal are
	// only stable after the blocking wait.
	if err := store.BlockUntilReady(ctx); err != nil {
		return nil, fmt.Errorf("scenario %s: wait: %w", scenario.Name, err)
	}

	result.Log = collector.Values()
	result.Firings = sink.Records()

	if err := checkCalls(scenario, result); err != nil {
		return nil, err
	}
	if err := CheckAssertions(scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

func checkCalls(scenario *Scenario, result *Result) error {
	for i, call := range scenario.Calls {
		if call.Outputs == nil {
			continue
		}
		got := result.Calls[i].Outputs
		if !buffersEqual(call.Outputs, got) {
			return fmt.Errorf("scenario %s: calls[%d] outputs %v, want %v",
				scenario.Name, i, got, call.Outputs)
		}
	}
	return nil
}

// CheckAssertions validates a result against the scenario's assertions.
func CheckAssertions(scenario *Scenario, result *Result) error {
	for i, a := range scenario.Assertions {
		if err := checkAssertion(&a, result); err != nil {
			return fmt.Errorf("scenario %s: assertions[%d] (%s): %w",
				scenario.Name, i, a.Type, err)
		}
	}
	return nil
}

func checkAssertion(a *Assertion, result *Result) error {
	switch a.Type {
	case AssertLogEquals:
		if !floatsEqual(a.Values, result.Log) {
			return fmt.Errorf("log is %v, want %v", result.Log, a.Values)
		}
	case AssertLogContains:
		if !containsSubsequence(result.Log, a.Values) {
			return fmt.Errorf("log %v does not contain %v in order", result.Log, a.Values)
		}
	case AssertJournalCount:
		n := 0
		for _, rec := range result.Firings {
			if rec.Effect == a.Effect {
				n++
			}
		}
		if n != a.Count {
			return fmt.Errorf("effect %q fired %d times, want %d", a.Effect, n, a.Count)
		}
	case AssertJournalOrder:
		var got [][]float64
		for _, rec := range result.Firings {
			if rec.Effect == a.Effect {
				got = append(got, rec.Args)
			}
		}
		if !buffersEqual(a.Args, got) {
			return fmt.Errorf("effect %q fired with %v, want %v", a.Effect, got, a.Args)
		}
	}
	return nil
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func buffersEqual(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func containsSubsequence(log, want []float64) bool {
	j := 0
	for _, v := range log {
		if j < len(want) && v == want[j] {
			j++
		}
	}
	return j == len(want)
}
