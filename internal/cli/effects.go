package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fennecml/fennec/internal/compiler"
)

// EffectInfo describes one effect of a module's graph.
type EffectInfo struct {
	Name      string `json:"name"`
	Ordered   bool   `json:"ordered"`
	Lowerable bool   `json:"lowerable"`
}

// EffectsResult is the effects command payload.
type EffectsResult struct {
	Module  string       `json:"module"`
	Effects []EffectInfo `json:"effects"`
}

// NewEffectsCommand creates the effects command.
func NewEffectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "effects <module.cue>",
		Short:         "Show a module's effect set and classification",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEffects(rootOpts, args[0], cmd)
		},
	}
}

func runEffects(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	result := EffectsResult{Module: mod.Name}
	for _, e := range mod.Graph.Effects.Slice() {
		result.Effects = append(result.Effects, EffectInfo{
			Name:      e.Name(),
			Ordered:   mod.Registry.IsOrdered(e),
			Lowerable: mod.Registry.IsLowerable(e),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(result.Effects) == 0 {
		fmt.Fprintf(formatter.Writer, "module %s is pure\n", mod.Name)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "module %s effects:\n", mod.Name)
	for _, info := range result.Effects {
		tag := color.New(color.FgCyan).Sprint("unordered")
		if info.Ordered {
			tag = color.New(color.FgYellow).Sprint("ordered")
		}
		line := fmt.Sprintf("  %s  %s", info.Name, tag)
		if !info.Lowerable {
			line += color.New(color.FgRed).Sprint("  unlowerable")
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}
