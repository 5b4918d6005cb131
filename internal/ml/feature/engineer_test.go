package feature

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

// Tuesday 14:30, a peak afternoon slot.
var featureClock = time.Date(2024, 5, 7, 14, 30, 0, 0, time.UTC)

func trainingRow(subjectID, userID uuid.UUID, estimated, actual, rating int, completedAt time.Time, deadline *time.Time) domain.TrainingRow {
	return domain.TrainingRow{
		SessionID:        uuid.New(),
		TaskID:           uuid.New(),
		UserID:           userID,
		SubjectID:        subjectID,
		SubjectName:      "subject",
		EstimatedMinutes: estimated,
		ActualMinutes:    actual,
		DifficultyRating: rating,
		Deadline:         deadline,
		CompletedAt:      completedAt,
	}
}

func TestEngineer_FitTransform(t *testing.T) {
	t.Run("empty input is insufficient data", func(t *testing.T) {
		e := NewEngineer(nil)
		_, _, err := e.FitTransform(nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientData)
	})

	t.Run("produces the fixed column order", func(t *testing.T) {
		e := NewEngineer(nil)
		subjectID := uuid.New()
		userID := uuid.New()
		// Monday 2024-05-06 at 09:00, deadline three days later.
		completed := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
		deadline := completed.Add(3 * 24 * time.Hour)

		x, y, err := e.FitTransform([]domain.TrainingRow{
			trainingRow(subjectID, userID, 60, 90, 4, completed, &deadline),
		})
		require.NoError(t, err)
		require.Len(t, x, 1)
		require.Len(t, x[0], len(FeatureColumns))

		assert.Equal(t, 60.0, x[0][0], "estimated_time")
		assert.Equal(t, 0.0, x[0][1], "first subject encodes to 0")
		assert.Equal(t, 9.0, x[0][2], "hour_of_day")
		assert.Equal(t, 0.0, x[0][3], "Monday is day 0")
		assert.Equal(t, 0.0, x[0][4], "Monday is not a weekend")
		assert.Equal(t, 4.0, x[0][5], "subject_avg_difficulty")
		assert.Equal(t, 1.5, x[0][6], "subject_avg_time_ratio")
		assert.Equal(t, 1.5, x[0][7], "user_avg_time_ratio")
		assert.Equal(t, 3.0, x[0][8], "days_until_due")
		assert.Equal(t, []float64{90}, y)
	})

	t.Run("weekend flag set for Saturday", func(t *testing.T) {
		e := NewEngineer(nil)
		completed := time.Date(2024, 5, 11, 10, 0, 0, 0, time.UTC) // Saturday
		x, _, err := e.FitTransform([]domain.TrainingRow{
			trainingRow(uuid.New(), uuid.New(), 60, 60, 3, completed, nil),
		})
		require.NoError(t, err)
		assert.Equal(t, 5.0, x[0][3])
		assert.Equal(t, 1.0, x[0][4])
	})

	t.Run("encodes subjects in first-seen order", func(t *testing.T) {
		e := NewEngineer(nil)
		first := uuid.New()
		second := uuid.New()
		userID := uuid.New()
		completed := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

		x, _, err := e.FitTransform([]domain.TrainingRow{
			trainingRow(first, userID, 60, 60, 3, completed, nil),
			trainingRow(second, userID, 60, 60, 3, completed, nil),
			trainingRow(first, userID, 60, 60, 3, completed, nil),
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, x[0][1])
		assert.Equal(t, 1.0, x[1][1])
		assert.Equal(t, 0.0, x[2][1])
		assert.Equal(t, 2, e.Encoder().Len())
	})

	t.Run("fills missing deadlines with the column mean", func(t *testing.T) {
		e := NewEngineer(nil)
		subjectID := uuid.New()
		userID := uuid.New()
		completed := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
		twoDays := completed.Add(2 * 24 * time.Hour)
		fourDays := completed.Add(4 * 24 * time.Hour)

		x, _, err := e.FitTransform([]domain.TrainingRow{
			trainingRow(subjectID, userID, 60, 60, 3, completed, &twoDays),
			trainingRow(subjectID, userID, 60, 60, 3, completed, nil),
			trainingRow(subjectID, userID, 60, 60, 3, completed, &fourDays),
		})
		require.NoError(t, err)

		assert.Equal(t, 3.0, x[1][8], "mean of 2 and 4")
		for i := range x {
			for j := range x[i] {
				assert.False(t, math.IsNaN(x[i][j]), "row %d col %d", i, j)
			}
		}
	})

	t.Run("negative days when completed after the deadline", func(t *testing.T) {
		e := NewEngineer(nil)
		completed := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
		deadline := completed.Add(-2 * 24 * time.Hour)
		x, _, err := e.FitTransform([]domain.TrainingRow{
			trainingRow(uuid.New(), uuid.New(), 60, 60, 3, completed, &deadline),
		})
		require.NoError(t, err)
		assert.Equal(t, -2.0, x[0][8])
	})
}

func TestEngineer_TransformForPrediction(t *testing.T) {
	subjectID := uuid.New()
	userID := uuid.New()

	fitted := func() *Engineer {
		e := NewEngineer(nil)
		completed := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
		_, _, err := e.FitTransform([]domain.TrainingRow{
			trainingRow(subjectID, userID, 60, 60, 3, completed, nil),
		})
		require.NoError(t, err)
		return e
	}

	newTask := func(subject uuid.UUID, deadline *time.Time) domain.Task {
		return domain.Task{
			ID:               uuid.New(),
			UserID:           userID,
			SubjectID:        subject,
			SubjectName:      "Math",
			Title:            "Worksheet",
			EstimatedMinutes: 45,
			Deadline:         deadline,
			Type:             domain.TypePractice,
		}
	}

	t.Run("known subject uses fitted code and stats", func(t *testing.T) {
		e := fitted()
		deadline := featureClock.Add(5 * 24 * time.Hour)
		stats := map[uuid.UUID]domain.SubjectStats{
			subjectID: {SubjectID: subjectID, AvgDifficulty: 4.2, AvgTimeRatio: 1.3, SessionCount: 8},
		}
		userStats := domain.UserStats{UserID: userID, AvgTimeRatio: 1.1, SessionCount: 12}

		x := e.TransformForPrediction([]domain.Task{newTask(subjectID, &deadline)}, stats, userStats, featureClock)
		require.Len(t, x, 1)

		assert.Equal(t, 45.0, x[0][0])
		assert.Equal(t, 0.0, x[0][1])
		assert.Equal(t, 14.0, x[0][2])
		assert.Equal(t, 1.0, x[0][3], "Tuesday is day 1")
		assert.Equal(t, 0.0, x[0][4])
		assert.Equal(t, 4.2, x[0][5])
		assert.Equal(t, 1.3, x[0][6])
		assert.Equal(t, 1.1, x[0][7])
		assert.Equal(t, 5.0, x[0][8])
	})

	t.Run("unknown subject encodes to -1 with defaults and a warning", func(t *testing.T) {
		var logBuf bytes.Buffer
		e := fitted()
		e.logger = slog.New(slog.NewTextHandler(&logBuf, nil))

		x := e.TransformForPrediction([]domain.Task{newTask(uuid.New(), nil)}, nil, domain.UserStats{}, featureClock)
		require.Len(t, x, 1)

		assert.Equal(t, -1.0, x[0][1])
		assert.Equal(t, 3.0, x[0][5])
		assert.Equal(t, 1.0, x[0][6])
		assert.Equal(t, 1.0, x[0][7], "zero-value user stats fall back to neutral ratio")
		assert.Equal(t, 0.0, x[0][8], "nil deadline is neutral")

		assert.Contains(t, logBuf.String(), "level=WARN")
		assert.Contains(t, logBuf.String(), domain.ErrUnknownSubject.Error())
	})

	t.Run("known subjects transform without warnings", func(t *testing.T) {
		var logBuf bytes.Buffer
		e := fitted()
		e.logger = slog.New(slog.NewTextHandler(&logBuf, nil))

		e.TransformForPrediction([]domain.Task{newTask(subjectID, nil)}, nil, domain.UserStats{}, featureClock)
		assert.NotContains(t, logBuf.String(), "level=WARN")
	})

	t.Run("inference vectors never contain NaN", func(t *testing.T) {
		e := fitted()
		tasks := []domain.Task{
			newTask(subjectID, nil),
			newTask(uuid.New(), nil),
		}
		x := e.TransformForPrediction(tasks, nil, domain.UserStats{}, featureClock)
		for i := range x {
			require.Len(t, x[i], len(FeatureColumns))
			for j := range x[i] {
				assert.False(t, math.IsNaN(x[i][j]), "row %d col %d", i, j)
			}
		}
	})
}

func TestLabelEncoder(t *testing.T) {
	t.Run("assigns codes in first-seen order", func(t *testing.T) {
		e := NewLabelEncoder()
		e.Fit([]string{"b", "a", "b", "c"})

		code, ok := e.Transform("b")
		require.True(t, ok)
		assert.Equal(t, 0, code)

		code, ok = e.Transform("c")
		require.True(t, ok)
		assert.Equal(t, 2, code)

		_, ok = e.Transform("z")
		assert.False(t, ok)
	})

	t.Run("round-trips through its class list", func(t *testing.T) {
		e := NewLabelEncoder()
		e.Fit([]string{"x", "y"})

		restored := NewLabelEncoderFromClasses(e.Classes())
		code, ok := restored.Transform("y")
		require.True(t, ok)
		assert.Equal(t, 1, code)
		assert.Equal(t, e.Classes(), restored.Classes())
	})
}

func TestStandardScaler(t *testing.T) {
	t.Run("scales to zero mean and unit variance", func(t *testing.T) {
		x := [][]float64{{1, 10}, {2, 20}, {3, 30}}
		s := FitScaler(x)
		scaled := s.Transform(x)

		for j := 0; j < 2; j++ {
			sum := 0.0
			for i := range scaled {
				sum += scaled[i][j]
			}
			assert.InDelta(t, 0, sum/3, 1e-9, "column %d mean", j)
		}
		assert.Negative(t, scaled[0][0])
		assert.Positive(t, scaled[2][0])
	})

	t.Run("constant columns pass through unscaled", func(t *testing.T) {
		x := [][]float64{{5, 1}, {5, 2}, {5, 3}}
		s := FitScaler(x)
		scaled := s.Transform(x)
		for i := range scaled {
			assert.Equal(t, 0.0, scaled[i][0])
			assert.False(t, math.IsNaN(scaled[i][0]))
		}
	})

	t.Run("single row does not produce NaN", func(t *testing.T) {
		x := [][]float64{{4, 2}}
		s := FitScaler(x)
		scaled := s.Transform(x)
		for _, v := range scaled[0] {
			assert.False(t, math.IsNaN(v))
		}
	})
}
