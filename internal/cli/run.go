package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fennecml/fennec/internal/harness"
	"github.com/fennecml/fennec/internal/store"
)

// RunResult is the run command payload.
type RunResult struct {
	Scenario string      `json:"scenario"`
	Calls    int         `json:"calls"`
	Log      []float64   `json:"log"`
	Firings  int         `json:"firings"`
	Outputs  [][]float64 `json:"outputs,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run an execution scenario",
		Long: `Run a YAML scenario: compile its CUE module, invoke it per call
step, wait for outstanding ordered effects, and check the scenario's
assertions. With --journal, effect firings are appended to a sqlite
journal for later inspection with the trace command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], journalPath, cmd)
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "sqlite journal to append effect firings to")
	return cmd
}

func runScenario(opts *RootOptions, path, journalPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		_ = formatter.Error("E004", err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario failed", err)
	}

	if journalPath != "" {
		if err := appendJournal(journalPath, result); err != nil {
			_ = formatter.Error("E005", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write journal", err)
		}
		formatter.VerboseLog("appended %d firing(s) to %s", len(result.Firings), journalPath)
	}

	payload := RunResult{
		Scenario: result.ScenarioName,
		Calls:    len(result.Calls),
		Log:      result.Log,
		Firings:  len(result.Firings),
	}
	for _, call := range result.Calls {
		payload.Outputs = append(payload.Outputs, call.Outputs...)
	}

	if formatter.Format == "json" {
		return formatter.Success(payload)
	}

	if opts.Verbose {
		fmt.Fprint(formatter.Writer, harness.RenderResult(result))
	}
	return formatter.OK(payload, fmt.Sprintf("scenario %s passed (%d calls, %d firings)",
		payload.Scenario, payload.Calls, payload.Firings))
}

func appendJournal(path string, result *harness.Result) error {
	j, err := store.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()
	for _, rec := range result.Firings {
		if err := j.Record(rec); err != nil {
			return err
		}
	}
	return nil
}
