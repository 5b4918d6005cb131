package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

const (
	// DefaultMaxTasks is the schedule size when the caller does not ask for one.
	DefaultMaxTasks = 8
	// MaxScheduleTasks caps how many tasks a single schedule may return.
	MaxScheduleTasks = 20
)

// DurationPredictor supplies completion-time predictions for tasks. The
// scheduler treats it as best effort: unavailable or failing predictors
// leave predictions unset.
type DurationPredictor interface {
	// Available reports whether a trained model is loaded.
	Available() bool

	// PredictBatch returns predicted minutes per task ID. Tasks it cannot
	// predict are absent from the map.
	PredictBatch(ctx context.Context, tasks []domain.Task, stats map[uuid.UUID]domain.SubjectStats, userStats domain.UserStats, now time.Time) (map[uuid.UUID]int, error)
}

// ScheduleInsights summarizes a generated schedule.
type ScheduleInsights struct {
	TotalTasks          int            `json:"total_tasks"`
	TotalTimeHours      float64        `json:"total_time_hours"`
	AvgPriority         float64        `json:"avg_priority"`
	SubjectDistribution map[string]int `json:"subject_distribution"`
	UrgentTasks         int            `json:"urgent_tasks"`
	DifficultTasks      int            `json:"difficult_tasks"`
	Insights            []string       `json:"insights"`
}

// Scheduler generates prioritized daily schedules from pending tasks and
// session-derived statistics.
type Scheduler struct {
	repo      domain.StudyRepository
	engine    *PriorityEngine
	predictor DurationPredictor
	logger    *slog.Logger
}

// NewScheduler creates a scheduler. The predictor may be nil; schedules then
// carry estimates only.
func NewScheduler(repo domain.StudyRepository, engine *PriorityEngine, predictor DurationPredictor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		repo:      repo,
		engine:    engine,
		predictor: predictor,
		logger:    logger,
	}
}

// GenerateDailySchedule returns up to maxTasks pending tasks sorted by
// priority. Data-access failures degrade to an empty schedule rather than an
// error; the student still gets a response.
func (s *Scheduler) GenerateDailySchedule(ctx context.Context, userID uuid.UUID, maxTasks int, now time.Time) ([]domain.ScoredTask, error) {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	if maxTasks > MaxScheduleTasks {
		maxTasks = MaxScheduleTasks
	}

	tasks, err := s.repo.PendingTasks(ctx, userID)
	if err != nil {
		s.logger.Warn("pending task fetch failed, returning empty schedule",
			"user_id", userID,
			"error", err,
		)
		return []domain.ScoredTask{}, nil
	}
	if len(tasks) == 0 {
		return []domain.ScoredTask{}, nil
	}

	stats, err := s.repo.SubjectStats(ctx, userID)
	if err != nil {
		s.logger.Warn("subject stats fetch failed, scoring with defaults",
			"user_id", userID,
			"error", err,
		)
		stats = map[uuid.UUID]domain.SubjectStats{}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	scored := make([]domain.ScoredTask, 0, len(tasks))
	kept := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		// Skip tasks whose deadline already passed before today.
		if task.Deadline != nil && task.Deadline.Before(startOfDay) {
			continue
		}

		subjectStats, ok := stats[task.SubjectID]
		if !ok {
			subjectStats = domain.DefaultSubjectStats(task.SubjectID, task.SubjectName)
		}
		scored = append(scored, s.engine.Score(task, subjectStats, now))
		kept = append(kept, task)
	}

	sortSchedule(scored)

	if len(scored) > maxTasks {
		scored = scored[:maxTasks]
	}

	s.attachPredictions(ctx, scored, kept, stats, userID, now)

	return scored, nil
}

// attachPredictions fills PredictedMinutes best effort. Any failure leaves
// the estimates in place.
func (s *Scheduler) attachPredictions(ctx context.Context, scored []domain.ScoredTask, tasks []domain.Task, stats map[uuid.UUID]domain.SubjectStats, userID uuid.UUID, now time.Time) {
	if s.predictor == nil || !s.predictor.Available() || len(scored) == 0 {
		return
	}

	userStats, err := s.repo.UserStats(ctx, userID)
	if err != nil {
		s.logger.Warn("user stats fetch failed, skipping predictions", "error", err)
		return
	}

	byID := make(map[uuid.UUID]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	selected := make([]domain.Task, 0, len(scored))
	for _, st := range scored {
		if t, ok := byID[st.TaskID]; ok {
			selected = append(selected, t)
		}
	}

	predictions, err := s.predictor.PredictBatch(ctx, selected, stats, userStats, now)
	if err != nil {
		s.logger.Warn("batch prediction failed, keeping estimates", "error", err)
		return
	}

	for i := range scored {
		if minutes, ok := predictions[scored[i].TaskID]; ok {
			m := minutes
			scored[i].PredictedMinutes = &m
		}
	}
}

// OptimizeScheduleByTime cuts the schedule at the first task that would
// exceed the time budget. Tasks are consumed in priority order; no
// bin-packing is attempted.
func (s *Scheduler) OptimizeScheduleByTime(schedule []domain.ScoredTask, availableHours float64) []domain.ScoredTask {
	optimized := make([]domain.ScoredTask, 0, len(schedule))
	usedHours := 0.0

	for _, task := range schedule {
		hours := float64(task.EffectiveMinutes()) / 60
		if usedHours+hours > availableHours {
			break
		}
		optimized = append(optimized, task)
		usedHours += hours
	}

	return optimized
}

// Insights summarizes the schedule for display.
func (s *Scheduler) Insights(schedule []domain.ScoredTask) ScheduleInsights {
	if len(schedule) == 0 {
		return ScheduleInsights{
			SubjectDistribution: map[string]int{},
			Insights:            []string{"No tasks to schedule"},
		}
	}

	totalMinutes := 0
	totalPriority := 0.0
	subjects := make(map[string]int)
	urgent := 0
	difficult := 0

	for _, task := range schedule {
		totalMinutes += task.EstimatedMinutes
		totalPriority += task.PriorityScore
		subjects[task.SubjectName]++
		if task.Subscores.Urgency > 0.7 {
			urgent++
		}
		if task.Subscores.Difficulty > 0.6 {
			difficult++
		}
	}

	var insights []string
	if urgent > 0 {
		insights = append(insights, fmt.Sprintf("%d urgent task(s) with approaching deadlines", urgent))
	}
	if difficult > 0 {
		insights = append(insights, fmt.Sprintf("%d challenging task(s) scheduled for high productivity time", difficult))
	}

	focusSubject := ""
	focusCount := 0
	for name, count := range subjects {
		if count > focusCount || (count == focusCount && name < focusSubject) {
			focusSubject = name
			focusCount = count
		}
	}
	insights = append(insights, fmt.Sprintf("Focus area: %s (%d tasks)", focusSubject, focusCount))

	return ScheduleInsights{
		TotalTasks:          len(schedule),
		TotalTimeHours:      math.Round(float64(totalMinutes)/60*10) / 10,
		AvgPriority:         math.Round(totalPriority/float64(len(schedule))*1000) / 1000,
		SubjectDistribution: subjects,
		UrgentTasks:         urgent,
		DifficultTasks:      difficult,
		Insights:            insights,
	}
}

// sortSchedule orders tasks by score descending, then earliest deadline with
// nil deadlines last, then task ID. The ordering is fully deterministic.
func sortSchedule(schedule []domain.ScoredTask) {
	sort.SliceStable(schedule, func(i, j int) bool {
		a, b := schedule[i], schedule[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		switch {
		case a.Deadline == nil && b.Deadline == nil:
			// fall through to ID tie-break
		case a.Deadline == nil:
			return false
		case b.Deadline == nil:
			return true
		case !a.Deadline.Equal(*b.Deadline):
			return a.Deadline.Before(*b.Deadline)
		}
		return a.TaskID.String() < b.TaskID.String()
	})
}
