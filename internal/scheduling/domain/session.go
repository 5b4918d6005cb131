package domain

import (
	"time"

	"github.com/google/uuid"
)

// StudySession is a completed study session recorded by the collaborating
// task system. Sessions are immutable and are the sole training signal.
type StudySession struct {
	ID               uuid.UUID
	TaskID           uuid.UUID
	UserID           uuid.UUID
	ActualMinutes    int
	DifficultyRating int
	CompletedAt      time.Time
}

// Validate checks the structural invariants of a session row.
func (s StudySession) Validate() error {
	if s.ActualMinutes <= 0 {
		return ErrNonPositiveActual
	}
	if s.DifficultyRating < 1 || s.DifficultyRating > 5 {
		return ErrInvalidDifficulty
	}
	return nil
}
