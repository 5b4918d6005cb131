package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubjectStats holds per-subject aggregates derived from session history.
// Stats are recomputed from the source of truth on every call, never cached.
type SubjectStats struct {
	SubjectID        uuid.UUID
	Name             string
	AvgDifficulty    float64
	RecentDifficulty float64
	AvgTimeRatio     float64
	SessionCount     int
	LastStudied      *time.Time
	RecentStudyDays  int
}

// DefaultSubjectStats returns neutral aggregates for a subject with no
// recorded sessions.
func DefaultSubjectStats(subjectID uuid.UUID, name string) SubjectStats {
	return SubjectStats{
		SubjectID:        subjectID,
		Name:             name,
		AvgDifficulty:    3.0,
		RecentDifficulty: 3.0,
		AvgTimeRatio:     1.0,
	}
}

// UserStats holds per-user aggregates derived from session history.
type UserStats struct {
	UserID       uuid.UUID
	AvgTimeRatio float64
	SessionCount int
}

// DefaultUserStats returns neutral aggregates for a user with no sessions.
func DefaultUserStats(userID uuid.UUID) UserStats {
	return UserStats{UserID: userID, AvgTimeRatio: 1.0}
}

// TrainingRow is a completed session joined with its task and subject,
// shaped for the feature engineer.
type TrainingRow struct {
	SessionID        uuid.UUID
	TaskID           uuid.UUID
	UserID           uuid.UUID
	SubjectID        uuid.UUID
	SubjectName      string
	EstimatedMinutes int
	ActualMinutes    int
	DifficultyRating int
	Deadline         *time.Time
	CompletedAt      time.Time
}

// Session returns the session view of the row, used to validate scanned
// history before it reaches the feature engineer.
func (r TrainingRow) Session() StudySession {
	return StudySession{
		ID:               r.SessionID,
		TaskID:           r.TaskID,
		UserID:           r.UserID,
		ActualMinutes:    r.ActualMinutes,
		DifficultyRating: r.DifficultyRating,
		CompletedAt:      r.CompletedAt,
	}
}
