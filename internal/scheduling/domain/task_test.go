package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskType_Weight(t *testing.T) {
	tests := []struct {
		taskType TaskType
		weight   float64
	}{
		{TypeExam, 1.0},
		{TypeAssignment, 0.9},
		{TypeProject, 0.85},
		{TypePractice, 0.6},
		{TypeReading, 0.5},
		{TypeReview, 0.4},
		{TypeGeneral, 0.3},
		{TaskType("something-else"), 0.3},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			assert.Equal(t, tt.weight, tt.taskType.Weight())
		})
	}
}

func TestTask_Validate(t *testing.T) {
	valid := Task{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Title:            "Linear algebra problem set",
		EstimatedMinutes: 60,
		Type:             TypeAssignment,
	}

	t.Run("valid task passes", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("empty title fails", func(t *testing.T) {
		task := valid
		task.Title = ""
		assert.ErrorIs(t, task.Validate(), ErrEmptyTitle)
	})

	t.Run("non-positive estimate fails", func(t *testing.T) {
		task := valid
		task.EstimatedMinutes = 0
		assert.ErrorIs(t, task.Validate(), ErrNonPositiveEstimate)
	})
}

func TestTask_HoursUntilDeadline(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no deadline", func(t *testing.T) {
		task := Task{}
		_, ok := task.HoursUntilDeadline(now)
		assert.False(t, ok)
	})

	t.Run("future deadline", func(t *testing.T) {
		deadline := now.Add(36 * time.Hour)
		task := Task{Deadline: &deadline}
		hours, ok := task.HoursUntilDeadline(now)
		require.True(t, ok)
		assert.InDelta(t, 36.0, hours, 1e-9)
	})

	t.Run("past deadline is negative", func(t *testing.T) {
		deadline := now.Add(-2 * time.Hour)
		task := Task{Deadline: &deadline}
		hours, ok := task.HoursUntilDeadline(now)
		require.True(t, ok)
		assert.Less(t, hours, 0.0)
	})
}

func TestTask_DaysUntilDeadline(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	deadline := now.Add(5 * 24 * time.Hour)
	task := Task{Deadline: &deadline}
	days, ok := task.DaysUntilDeadline(now)
	require.True(t, ok)
	assert.Equal(t, 5, days)

	_, ok = Task{}.DaysUntilDeadline(now)
	assert.False(t, ok)
}

func TestStudySession_Validate(t *testing.T) {
	valid := StudySession{
		ID:               uuid.New(),
		TaskID:           uuid.New(),
		UserID:           uuid.New(),
		ActualMinutes:    45,
		DifficultyRating: 3,
		CompletedAt:      time.Now(),
	}

	t.Run("valid session passes", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("zero minutes fails", func(t *testing.T) {
		s := valid
		s.ActualMinutes = 0
		assert.ErrorIs(t, s.Validate(), ErrNonPositiveActual)
	})

	t.Run("rating out of range fails", func(t *testing.T) {
		for _, rating := range []int{0, 6, -1} {
			s := valid
			s.DifficultyRating = rating
			assert.ErrorIs(t, s.Validate(), ErrInvalidDifficulty)
		}
	})
}

func TestDefaultStats(t *testing.T) {
	subjectID := uuid.New()
	stats := DefaultSubjectStats(subjectID, "Mathematics")
	assert.Equal(t, subjectID, stats.SubjectID)
	assert.Equal(t, "Mathematics", stats.Name)
	assert.Equal(t, 3.0, stats.AvgDifficulty)
	assert.Equal(t, 3.0, stats.RecentDifficulty)
	assert.Equal(t, 1.0, stats.AvgTimeRatio)
	assert.Zero(t, stats.SessionCount)
	assert.Nil(t, stats.LastStudied)

	userID := uuid.New()
	user := DefaultUserStats(userID)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, 1.0, user.AvgTimeRatio)
	assert.Zero(t, user.SessionCount)
}

func TestScoredTask_EffectiveMinutes(t *testing.T) {
	scored := ScoredTask{EstimatedMinutes: 60}
	assert.Equal(t, 60, scored.EffectiveMinutes())

	predicted := 85
	scored.PredictedMinutes = &predicted
	assert.Equal(t, 85, scored.EffectiveMinutes())
}

func TestTrainingRow_Session(t *testing.T) {
	row := TrainingRow{
		SessionID:        uuid.New(),
		TaskID:           uuid.New(),
		UserID:           uuid.New(),
		ActualMinutes:    45,
		DifficultyRating: 6,
		CompletedAt:      time.Now(),
	}

	session := row.Session()
	assert.Equal(t, row.SessionID, session.ID)
	assert.Equal(t, row.TaskID, session.TaskID)
	assert.Equal(t, row.ActualMinutes, session.ActualMinutes)
	assert.ErrorIs(t, session.Validate(), ErrInvalidDifficulty)
}
