package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario describes one execution scenario: a CUE module, the
// callbacks bound to the external log, a sequence of calls, and
// assertions on what the run observed.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the path to the CUE module file, relative to the
	// scenario file location.
	Module string `yaml:"module"`

	// Callbacks lists callback ids to bind to the shared external log.
	// Every callback the module references must appear here.
	Callbacks []string `yaml:"callbacks"`

	// Calls is the invocation sequence. All calls share one execution
	// context, so ordered effects sequence across them.
	Calls []CallStep `yaml:"calls"`

	// Assertions validate the log and the effect journal after the
	// final blocking wait.
	Assertions []Assertion `yaml:"assertions"`
}

// CallStep is one invocation of the compiled module.
type CallStep struct {
	// Inputs carries one flat float64 buffer per module input.
	Inputs [][]float64 `yaml:"inputs"`

	// Outputs, if present, are the expected result buffers.
	Outputs [][]float64 `yaml:"outputs,omitempty"`
}

// Assertion validates the observed log or journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Values is the expected log content (log_equals, log_contains).
	Values []float64 `yaml:"values,omitempty"`

	// Effect filters journal assertions (journal_count, journal_order).
	Effect string `yaml:"effect,omitempty"`

	// Count is the expected number of firings (journal_count).
	Count int `yaml:"count,omitempty"`

	// Args is the expected per-firing argument sequence (journal_order).
	Args [][]float64 `yaml:"args,omitempty"`
}

// Assertion type constants.
const (
	AssertLogEquals    = "log_equals"
	AssertLogContains  = "log_contains"
	AssertJournalCount = "journal_count"
	AssertJournalOrder = "journal_order"
)

// LoadScenario reads and parses a scenario YAML file. The module path
// is resolved relative to the scenario file's directory. Unknown YAML
// fields are rejected, which catches key typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Module != "" && !filepath.IsAbs(scenario.Module) {
		scenario.Module = filepath.Join(filepath.Dir(path), scenario.Module)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if _, err := os.Stat(s.Module); os.IsNotExist(err) {
		return fmt.Errorf("module file not found: %s", s.Module)
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}
	for i, call := range s.Calls {
		if len(call.Inputs) == 0 {
			return fmt.Errorf("calls[%d]: inputs is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertLogEquals, AssertLogContains:
		// an empty values list is a valid expectation for log_equals
	case AssertJournalCount:
		if a.Effect == "" {
			return fmt.Errorf("assertions[%d]: effect is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertJournalOrder:
		if a.Effect == "" {
			return fmt.Errorf("assertions[%d]: effect is required for journal_order", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
