package domain

import (
	"context"

	"github.com/google/uuid"
)

// StudyRepository is the read contract onto the collaborating task system.
// Implementations must wrap transport failures in ErrDataAccess so callers
// can degrade instead of propagating infrastructure errors.
type StudyRepository interface {
	// PendingTasks returns the user's pending and in-progress tasks.
	PendingTasks(ctx context.Context, userID uuid.UUID) ([]Task, error)

	// TasksByIDs returns the subset of the given tasks owned by the user.
	// Unknown IDs are silently omitted.
	TasksByIDs(ctx context.Context, userID uuid.UUID, taskIDs []uuid.UUID) ([]Task, error)

	// SubjectStats returns per-subject aggregates for the user, keyed by
	// subject ID. Subjects without sessions are absent.
	SubjectStats(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]SubjectStats, error)

	// UserStats returns the user's aggregate time ratio and session count.
	UserStats(ctx context.Context, userID uuid.UUID) (UserStats, error)

	// TrainingHistory returns all completed sessions joined with task and
	// subject data, oldest first.
	TrainingHistory(ctx context.Context) ([]TrainingRow, error)

	// TrainingRowCount returns the number of rows TrainingHistory would
	// return, without materializing them.
	TrainingRowCount(ctx context.Context) (int, error)
}
