// Package schedule implements the schedule command.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/studyloop/studyloop/adapter/cli"
)

var (
	userFlag     string
	maxTasksFlag int
	hoursFlag    float64
)

// Cmd is the schedule command.
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Generate today's prioritized study schedule",
	Long: `Generate a prioritized schedule of pending study tasks.

Tasks are ranked by a multi-factor priority score. When a trained model is
available, each task also carries a predicted duration. With --hours the
schedule is cut down to fit the available study time.

Examples:
  studyloop schedule
  studyloop schedule --max-tasks 5
  studyloop schedule --hours 2.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		out := cmd.OutOrStdout()
		if app == nil || app.Scheduler == nil {
			fmt.Fprintln(out, "Schedule commands require a database connection.")
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

		schedule, err := app.Scheduler.GenerateDailySchedule(cmd.Context(), userID, maxTasksFlag, time.Now())
		if err != nil {
			return err
		}

		hours := hoursFlag
		if hours == 0 && app.Config != nil {
			hours = app.Config.AvailableHours
		}
		if hours > 0 {
			schedule = app.Scheduler.OptimizeScheduleByTime(schedule, hours)
		}

		if len(schedule) == 0 {
			fmt.Fprintln(out, "No pending tasks to schedule.")
			return nil
		}

		fmt.Fprintf(out, "Today's schedule (%d tasks):\n\n", len(schedule))
		for i, task := range schedule {
			minutes := task.EstimatedMinutes
			predicted := ""
			if task.PredictedMinutes != nil {
				minutes = *task.PredictedMinutes
				predicted = " (predicted)"
			}

			due := ""
			if task.DaysUntilDue != nil {
				due = fmt.Sprintf(", due in %dd", *task.DaysUntilDue)
			}

			fmt.Fprintf(out, "%2d. [%.3f] %s - %s\n", i+1, task.PriorityScore, task.SubjectName, task.TaskName)
			fmt.Fprintf(out, "    %d min%s%s\n", minutes, predicted, due)
			fmt.Fprintf(out, "    %s\n", task.Reason)
		}

		insights := app.Scheduler.Insights(schedule)
		fmt.Fprintf(out, "\nTotal study time: %.1fh, average priority %.3f\n",
			insights.TotalTimeHours, insights.AvgPriority)
		if len(insights.Insights) > 0 {
			fmt.Fprintf(out, "Insights: %s\n", strings.Join(insights.Insights, "; "))
		}

		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&userFlag, "user", "u", "", "user id (defaults to the configured user)")
	Cmd.Flags().IntVarP(&maxTasksFlag, "max-tasks", "m", 0, "maximum tasks to schedule (1-20)")
	Cmd.Flags().Float64Var(&hoursFlag, "hours", 0, "available study hours, greedily fits the top of the schedule")
}
