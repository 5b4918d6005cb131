// Package weights implements the weights command group.
package weights

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studyloop/studyloop/adapter/cli"
	"github.com/studyloop/studyloop/internal/scheduling/application/services"
)

// Cmd is the weights command group.
var Cmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect and tune scoring weights",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active scoring weights",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		out := cmd.OutOrStdout()
		if app == nil || app.Engine == nil {
			fmt.Fprintln(out, "Weights require an initialized application.")
			return nil
		}

		printWeights(cmd, app.Engine.StrategyName(), app.Engine.Weights())
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set component=weight ...",
	Short: "Set scoring weights",
	Long: `Set the weights of the active scoring strategy. All components must
be given and the weights must sum to 1.0; invalid sets are rejected without
changing anything.

Example:
  studyloop weights set urgency=0.4 difficulty=0.3 forgetting=0.2 productivity=0.1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		out := cmd.OutOrStdout()
		if app == nil || app.Engine == nil {
			fmt.Fprintln(out, "Weights require an initialized application.")
			return nil
		}

		weights := make(services.Weights, len(args))
		for _, arg := range args {
			name, raw, found := strings.Cut(arg, "=")
			if !found {
				return fmt.Errorf("invalid weight %q, expected component=weight", arg)
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("invalid weight %q: %w", arg, err)
			}
			weights[name] = value
		}

		if err := app.Engine.SetWeights(weights); err != nil {
			return err
		}

		fmt.Fprintln(out, "Weights updated.")
		printWeights(cmd, app.Engine.StrategyName(), app.Engine.Weights())
		return nil
	},
}

func printWeights(cmd *cobra.Command, strategy string, weights services.Weights) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Strategy: %s\n", strategy)

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-14s %.3f\n", name, weights[name])
	}
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(setCmd)
}
