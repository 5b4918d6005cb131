package feature

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

// FeatureColumns is the fixed column order of every feature matrix. Training
// and inference must agree on it exactly.
var FeatureColumns = []string{
	"estimated_time",
	"subject_encoded",
	"hour_of_day",
	"day_of_week",
	"is_weekend",
	"subject_avg_difficulty",
	"subject_avg_time_ratio",
	"user_avg_time_ratio",
	"days_until_due",
}

// Neutral defaults used when aggregates are unavailable at inference.
const (
	defaultDifficulty  = 3.0
	defaultTimeRatio   = 1.0
	unknownSubjectCode = -1
)

// Engineer builds feature matrices from training rows and pending tasks.
type Engineer struct {
	encoder *LabelEncoder
	logger  *slog.Logger
}

// NewEngineer creates an engineer with an empty subject encoder.
func NewEngineer(logger *slog.Logger) *Engineer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engineer{
		encoder: NewLabelEncoder(),
		logger:  logger,
	}
}

// Encoder exposes the fitted subject encoder for persistence.
func (e *Engineer) Encoder() *LabelEncoder {
	return e.encoder
}

// SetEncoder replaces the subject encoder, typically after loading a
// persisted one.
func (e *Engineer) SetEncoder(encoder *LabelEncoder) {
	e.encoder = encoder
}

// FitTransform fits the subject encoder and aggregate statistics on the
// training rows and returns the feature matrix plus the target vector of
// actual minutes. Missing deadline features are filled with the column mean.
func (e *Engineer) FitTransform(rows []domain.TrainingRow) ([][]float64, []float64, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no training rows: %w", domain.ErrInsufficientData)
	}

	subjectDifficulty := make(map[uuid.UUID]float64)
	subjectRatio := make(map[uuid.UUID]float64)
	subjectCount := make(map[uuid.UUID]int)
	userRatio := make(map[uuid.UUID]float64)
	userCount := make(map[uuid.UUID]int)

	for _, row := range rows {
		ratio := float64(row.ActualMinutes) / float64(row.EstimatedMinutes)
		subjectDifficulty[row.SubjectID] += float64(row.DifficultyRating)
		subjectRatio[row.SubjectID] += ratio
		subjectCount[row.SubjectID]++
		userRatio[row.UserID] += ratio
		userCount[row.UserID]++

		e.encoder.Fit([]string{row.SubjectID.String()})
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, row := range rows {
		code, _ := e.encoder.Transform(row.SubjectID.String())
		n := float64(subjectCount[row.SubjectID])
		un := float64(userCount[row.UserID])

		daysUntilDue := math.NaN()
		if row.Deadline != nil {
			daysUntilDue = math.Floor(row.Deadline.Sub(row.CompletedAt).Hours() / 24)
		}

		x[i] = []float64{
			float64(row.EstimatedMinutes),
			float64(code),
			float64(row.CompletedAt.Hour()),
			float64(mondayWeekday(row.CompletedAt)),
			boolToFloat(isWeekend(row.CompletedAt)),
			subjectDifficulty[row.SubjectID] / n,
			subjectRatio[row.SubjectID] / n,
			userRatio[row.UserID] / un,
			daysUntilDue,
		}
		y[i] = float64(row.ActualMinutes)
	}

	fillColumnMeans(x)

	e.logger.Debug("feature matrix prepared",
		"rows", len(x),
		"columns", len(FeatureColumns),
		"subjects", e.encoder.Len(),
	)

	return x, y, nil
}

// TransformForPrediction builds inference rows for pending tasks in the same
// column order as training. Lookups that fail keep neutral defaults; the
// returned matrix never contains NaNs.
func (e *Engineer) TransformForPrediction(tasks []domain.Task, stats map[uuid.UUID]domain.SubjectStats, userStats domain.UserStats, now time.Time) [][]float64 {
	hour := float64(now.Hour())
	dow := float64(mondayWeekday(now))
	weekend := boolToFloat(isWeekend(now))

	userAvgRatio := userStats.AvgTimeRatio
	if userAvgRatio == 0 {
		userAvgRatio = defaultTimeRatio
	}

	x := make([][]float64, len(tasks))
	for i, task := range tasks {
		code := float64(unknownSubjectCode)
		if c, ok := e.encoder.Transform(task.SubjectID.String()); ok {
			code = float64(c)
		} else {
			e.logger.Warn("subject not seen during training, using sentinel encoding",
				"subject_id", task.SubjectID,
				"task_id", task.ID,
				"error", domain.ErrUnknownSubject,
			)
		}

		avgDifficulty := defaultDifficulty
		avgRatio := defaultTimeRatio
		if s, ok := stats[task.SubjectID]; ok && s.SessionCount > 0 {
			avgDifficulty = s.AvgDifficulty
			avgRatio = s.AvgTimeRatio
		}

		daysUntilDue := 0.0
		if task.Deadline != nil {
			daysUntilDue = math.Floor(task.Deadline.Sub(now).Hours() / 24)
		}

		x[i] = []float64{
			float64(task.EstimatedMinutes),
			code,
			hour,
			dow,
			weekend,
			avgDifficulty,
			avgRatio,
			userAvgRatio,
			daysUntilDue,
		}
	}
	return x
}

// mondayWeekday returns the weekday with Monday as 0 and Sunday as 6.
func mondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func isWeekend(t time.Time) bool {
	return mondayWeekday(t) >= 5
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// fillColumnMeans replaces NaNs with the mean of the column's defined
// values, or 0 when the whole column is undefined.
func fillColumnMeans(x [][]float64) {
	if len(x) == 0 {
		return
	}
	cols := len(x[0])
	for j := 0; j < cols; j++ {
		sum := 0.0
		n := 0
		for i := range x {
			if !math.IsNaN(x[i][j]) {
				sum += x[i][j]
				n++
			}
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		for i := range x {
			if math.IsNaN(x[i][j]) {
				x[i][j] = mean
			}
		}
	}
}
