// Package predict implements the predict command.
package predict

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/studyloop/studyloop/adapter/cli"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

var (
	userFlag  string
	taskFlags []string
)

// Cmd is the predict command.
var Cmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict actual study time for tasks",
	Long: `Predict how many minutes the given tasks will actually take,
based on the trained time model.

Examples:
  studyloop predict --task 8a5f...
  studyloop predict --task 8a5f... --task 11bc...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		out := cmd.OutOrStdout()
		if app == nil || app.Predictor == nil || app.Repo == nil {
			fmt.Fprintln(out, "Predict commands require a database connection.")
			return nil
		}

		if !app.Predictor.Available() {
			fmt.Fprintln(out, "No trained model available. Run: studyloop train")
			return nil
		}

		userID := app.CurrentUserID
		if userFlag != "" {
			parsed, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			userID = parsed
		}
		if userID == uuid.Nil {
			return fmt.Errorf("no user configured, set STUDYLOOP_USER_ID or pass --user")
		}
		if len(taskFlags) == 0 {
			return fmt.Errorf("at least one --task is required")
		}

		taskIDs := make([]uuid.UUID, 0, len(taskFlags))
		for _, raw := range taskFlags {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", raw, err)
			}
			taskIDs = append(taskIDs, id)
		}

		ctx := cmd.Context()
		tasks, err := app.Repo.TasksByIDs(ctx, userID, taskIDs)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return fmt.Errorf("no matching tasks for user")
		}

		stats, err := app.Repo.SubjectStats(ctx, userID)
		if err != nil {
			stats = map[uuid.UUID]domain.SubjectStats{}
		}
		userStats, err := app.Repo.UserStats(ctx, userID)
		if err != nil {
			userStats = domain.DefaultUserStats(userID)
		}

		minutes, err := app.Predictor.PredictBatch(ctx, tasks, stats, userStats, time.Now())
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Model %s (confidence %.2f):\n\n", app.Predictor.Version(), app.Predictor.Confidence())
		for _, task := range tasks {
			predicted, ok := minutes[task.ID]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "%s - %s: estimated %d min, predicted %d min\n",
				task.SubjectName, task.Title, task.EstimatedMinutes, predicted)
		}

		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&userFlag, "user", "u", "", "user id (defaults to the configured user)")
	Cmd.Flags().StringArrayVarP(&taskFlags, "task", "t", nil, "task id to predict (repeatable)")
}
