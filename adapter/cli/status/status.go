// Package status implements the status command.
package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyloop/studyloop/adapter/cli"
)

// Cmd is the status command.
var Cmd = &cobra.Command{
	Use:   "status",
	Short: "Show scorer and model status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		out := cmd.OutOrStdout()
		if app == nil || app.Predictor == nil || app.Engine == nil {
			fmt.Fprintln(out, "Status requires an initialized application.")
			return nil
		}

		fmt.Fprintf(out, "Scoring strategy:  %s\n", app.Engine.StrategyName())
		fmt.Fprintf(out, "Predictor loaded:  %v\n", app.Predictor.Available())
		fmt.Fprintf(out, "Encoders loaded:   %v\n", app.Predictor.EncodersLoaded())
		if version := app.Predictor.Version(); version != "" {
			fmt.Fprintf(out, "Model version:     %s\n", version)
			fmt.Fprintf(out, "Confidence:        %.2f\n", app.Predictor.Confidence())
		}

		if app.Health != nil {
			overall := app.Health.GetOverallHealth(cmd.Context())
			fmt.Fprintf(out, "Overall health:    %s\n", overall.Status)
			for name, check := range overall.Checks {
				fmt.Fprintf(out, "  %-12s %s", name, check.Status)
				if check.Message != "" {
					fmt.Fprintf(out, " (%s)", check.Message)
				}
				fmt.Fprintln(out)
			}
		}

		return nil
	},
}
