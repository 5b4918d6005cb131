// Package train implements the train command.
package train

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyloop/studyloop/adapter/cli"
	"github.com/studyloop/studyloop/internal/ml/training"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

// Cmd is the train command.
var Cmd = &cobra.Command{
	Use:   "train",
	Short: "Train the time prediction model",
	Long: `Train the time prediction model on completed study sessions and
swap it into the running predictor.

Training needs enough completed sessions to be meaningful; with too little
history the run fails and reports how many more sessions are needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		out := cmd.OutOrStdout()
		if app == nil || app.Training == nil {
			fmt.Fprintln(out, "Training requires a database connection.")
			return nil
		}

		fmt.Fprintln(out, "Training time prediction model...")

		result, err := app.Training.Run(cmd.Context())
		if err != nil {
			if errors.Is(err, domain.ErrTrainingInProgress) {
				fmt.Fprintln(out, "A training run is already in progress.")
				return nil
			}
			if errors.Is(err, domain.ErrInsufficientData) {
				fmt.Fprintln(out, "Not enough completed study sessions to train yet.")
				fmt.Fprintf(out, "Details: %v\n", err)
				return nil
			}
			return err
		}

		fmt.Fprintf(out, "Model %s trained on %d sessions.\n", result.Version, result.Rows)
		fmt.Fprintf(out, "Validation MAE %.1f min, R² %.3f\n", result.Metrics.ValMAE, result.Metrics.ValR2)
		if app.Predictor != nil {
			if top := training.TopFeatures(app.Predictor.FeatureImportance(), 5); len(top) > 0 {
				fmt.Fprintln(out, "Top features:")
				for _, f := range top {
					fmt.Fprintf(out, "  %s\n", f)
				}
			}
		}
		return nil
	},
}
