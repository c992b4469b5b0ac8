package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fennecml/fennec/internal/compiler"
	"github.com/fennecml/fennec/internal/lower"
)

// LowerResult is the lower command payload.
type LowerResult struct {
	Module      string   `json:"module"`
	Fingerprint string   `json:"fingerprint"`
	Boundary    []string `json:"boundary_effects,omitempty"`
	Program     string   `json:"program"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "lower <module.cue>",
		Short:         "Lower a module and print the backend program",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(rootOpts, args[0], cmd)
		},
	}
}

func runLower(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	mod, err := compiler.Load(path)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load module", err)
	}

	prog, err := lower.Lower(mod.Registry, lower.StandardRules(), mod.Graph)
	if err != nil {
		_ = formatter.Error(lowerErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "lowering failed", err)
	}

	result := LowerResult{
		Module:      mod.Name,
		Fingerprint: prog.Fingerprint,
		Program:     lower.RenderProgram(prog),
	}
	for _, e := range prog.BoundaryEffects {
		result.Boundary = append(result.Boundary, e.Name())
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	formatter.VerboseLog("fingerprint: %s", result.Fingerprint)
	fmt.Fprint(formatter.Writer, result.Program)
	return nil
}

// lowerErrorCode maps a lowering failure to its taxonomy code.
func lowerErrorCode(err error) string {
	var lerr *lower.LoweringError
	if errors.As(err, &lerr) {
		return string(lerr.Code)
	}
	return "E003"
}
