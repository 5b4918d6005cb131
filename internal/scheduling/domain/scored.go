package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subscores are the weighted components behind a priority score, each in
// [0,1]. The task-type strategy maps its type, performance, and time-factor
// scores onto the Difficulty, Forgetting, and Productivity slots.
type Subscores struct {
	Urgency      float64 `json:"urgency"`
	Difficulty   float64 `json:"difficulty"`
	Forgetting   float64 `json:"forgetting"`
	Productivity float64 `json:"productivity"`
}

// ScoredTask is a task annotated with its priority score and prediction.
// Scored tasks are computed fresh per call and never persisted.
type ScoredTask struct {
	TaskID             uuid.UUID  `json:"task_id"`
	TaskName           string     `json:"task_name"`
	SubjectName        string     `json:"subject_name"`
	EstimatedMinutes   int        `json:"estimated_minutes"`
	PredictedMinutes   *int       `json:"predicted_minutes,omitempty"`
	PriorityScore      float64    `json:"priority_score"`
	Subscores          Subscores  `json:"subscores"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	DaysUntilDue       *int       `json:"days_until_due,omitempty"`
	DaysSinceLastStudy *int       `json:"days_since_last_study,omitempty"`
	Reason             string     `json:"reason"`
}

// EffectiveMinutes returns the predicted duration when available, otherwise
// the estimate. Used by the time-budget optimizer.
func (s ScoredTask) EffectiveMinutes() int {
	if s.PredictedMinutes != nil {
		return *s.PredictedMinutes
	}
	return s.EstimatedMinutes
}
