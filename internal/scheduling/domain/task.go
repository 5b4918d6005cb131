package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyTitle          = errors.New("task title cannot be empty")
	ErrNonPositiveEstimate = errors.New("estimated minutes must be positive")
	ErrInvalidDifficulty   = errors.New("difficulty rating must be between 1 and 5")
	ErrNonPositiveActual   = errors.New("actual minutes must be positive")
)

// TaskStatus represents the task lifecycle state as reported by the
// collaborating task system.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusComplete   TaskStatus = "complete"
	StatusCancelled  TaskStatus = "cancelled"
)

// TaskType categorizes study work. The type weight feeds the task-type
// scoring strategy.
type TaskType string

const (
	TypeExam       TaskType = "exam"
	TypeAssignment TaskType = "assignment"
	TypeProject    TaskType = "project"
	TypePractice   TaskType = "practice"
	TypeReading    TaskType = "reading"
	TypeReview     TaskType = "review"
	TypeGeneral    TaskType = "general"
)

// Weight returns the importance weight for the task type. Unknown types fall
// back to the general weight.
func (t TaskType) Weight() float64 {
	switch t {
	case TypeExam:
		return 1.0
	case TypeAssignment:
		return 0.9
	case TypeProject:
		return 0.85
	case TypePractice:
		return 0.6
	case TypeReading:
		return 0.5
	case TypeReview:
		return 0.4
	default:
		return 0.3
	}
}

// Task is a unit of study work owned by the collaborating task system.
// StudyLoop only reads tasks; it never mutates them.
type Task struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	SubjectID        uuid.UUID
	SubjectName      string
	Title            string
	EstimatedMinutes int
	Deadline         *time.Time
	Status           TaskStatus
	Type             TaskType
	CreatedAt        time.Time
}

// Validate checks the structural invariants of a task row.
func (t Task) Validate() error {
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if t.EstimatedMinutes <= 0 {
		return ErrNonPositiveEstimate
	}
	return nil
}

// HoursUntilDeadline returns the hours remaining until the deadline measured
// from now, or ok=false when the task has no deadline.
func (t Task) HoursUntilDeadline(now time.Time) (hours float64, ok bool) {
	if t.Deadline == nil {
		return 0, false
	}
	return t.Deadline.Sub(now).Hours(), true
}

// DaysUntilDeadline returns whole days until the deadline (negative when
// overdue), or ok=false when the task has no deadline.
func (t Task) DaysUntilDeadline(now time.Time) (days int, ok bool) {
	if t.Deadline == nil {
		return 0, false
	}
	return int(t.Deadline.Sub(now).Hours() / 24), true
}
