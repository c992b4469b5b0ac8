package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fennecml/fennec/internal/runtime"
	"github.com/fennecml/fennec/internal/store"
)

// TraceResult is the trace command payload.
type TraceResult struct {
	Journal string           `json:"journal"`
	Firings []runtime.Record `json:"firings"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var effect, context string

	cmd := &cobra.Command{
		Use:           "trace <journal.db>",
		Short:         "List recorded effect firings from a journal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], store.Filter{Effect: effect, Context: context}, cmd)
		},
	}

	cmd.Flags().StringVar(&effect, "effect", "", "only firings of this effect")
	cmd.Flags().StringVar(&context, "context", "", "only firings from this execution context")
	return cmd
}

func runTrace(opts *RootOptions, path string, filter store.Filter, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := store.Open(path)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	recs, err := j.List(filter)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(TraceResult{Journal: path, Firings: recs})
	}

	if len(recs) == 0 {
		fmt.Fprintln(formatter.Writer, "no firings recorded")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(formatter.Writer, "seq=%d effect=%s context=%s callback=%s args=%v\n",
			rec.Seq, rec.Effect, rec.Context, rec.Callback, rec.Args)
	}
	return nil
}
