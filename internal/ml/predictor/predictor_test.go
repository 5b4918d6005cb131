package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/studyloop/internal/ml/artifact"
	"github.com/studyloop/studyloop/internal/ml/feature"
	"github.com/studyloop/studyloop/internal/ml/regression"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

var predictorClock = time.Date(2024, 5, 7, 10, 0, 0, 0, time.UTC)

// trainedModel fits a small but real model over the standard feature columns.
func trainedModel(t *testing.T) (*regression.Ridge, *feature.LabelEncoder, regression.Metrics) {
	t.Helper()

	subjectID := uuid.New()
	userID := uuid.New()
	var rows []domain.TrainingRow
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		estimated := 30 + i*3
		completed := base.Add(time.Duration(i) * 24 * time.Hour)
		deadline := completed.Add(72 * time.Hour)
		rows = append(rows, domain.TrainingRow{
			SessionID:        uuid.New(),
			TaskID:           uuid.New(),
			UserID:           userID,
			SubjectID:        subjectID,
			SubjectName:      "Math",
			EstimatedMinutes: estimated,
			ActualMinutes:    int(float64(estimated) * 1.2),
			DifficultyRating: 3,
			Deadline:         &deadline,
			CompletedAt:      completed,
		})
	}

	engineer := feature.NewEngineer(nil)
	x, y, err := engineer.FitTransform(rows)
	require.NoError(t, err)

	model := regression.NewRidge()
	metrics, err := model.Train(x, y, 0.2)
	require.NoError(t, err)

	return model, engineer.Encoder(), metrics
}

func testTask(subjectID uuid.UUID, estimated int) domain.Task {
	deadline := predictorClock.Add(48 * time.Hour)
	return domain.Task{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		SubjectID:        subjectID,
		SubjectName:      "Math",
		Title:            "Worksheet",
		EstimatedMinutes: estimated,
		Deadline:         &deadline,
		Type:             domain.TypePractice,
	}
}

func TestService_Availability(t *testing.T) {
	t.Run("fresh service is unavailable", func(t *testing.T) {
		s := NewService(artifact.NewStore(t.TempDir(), nil), nil)
		assert.False(t, s.Available())
		assert.False(t, s.EncodersLoaded())
		assert.Empty(t, s.Version())

		_, err := s.PredictBatch(context.Background(), []domain.Task{testTask(uuid.New(), 60)}, nil, domain.UserStats{}, predictorClock)
		assert.ErrorIs(t, err, domain.ErrNotTrained)
	})

	t.Run("swap makes the service available", func(t *testing.T) {
		model, encoder, metrics := trainedModel(t)
		s := NewService(artifact.NewStore(t.TempDir(), nil), nil)

		s.Swap(ModelArtifact{
			Model:        model,
			Metrics:      metrics,
			FeatureOrder: feature.FeatureColumns,
			Version:      "20240507-100000",
			TrainedAt:    predictorClock,
		}, encoder)

		assert.True(t, s.Available())
		assert.True(t, s.EncodersLoaded())
		assert.Equal(t, "20240507-100000", s.Version())
	})
}

func TestService_PredictBatch(t *testing.T) {
	model, encoder, metrics := trainedModel(t)
	s := NewService(artifact.NewStore(t.TempDir(), nil), nil)
	s.Swap(ModelArtifact{Model: model, Metrics: metrics, Version: "v1"}, encoder)

	t.Run("predicts at least the floor for every task", func(t *testing.T) {
		tasks := []domain.Task{
			testTask(uuid.New(), 30),
			testTask(uuid.New(), 90),
		}
		preds, err := s.PredictBatch(context.Background(), tasks, nil, domain.UserStats{}, predictorClock)
		require.NoError(t, err)
		require.Len(t, preds, 2)
		for _, task := range tasks {
			assert.GreaterOrEqual(t, preds[task.ID], int(regression.MinPredictionMinutes))
		}
	})

	t.Run("empty batch is an empty map", func(t *testing.T) {
		preds, err := s.PredictBatch(context.Background(), nil, nil, domain.UserStats{}, predictorClock)
		require.NoError(t, err)
		assert.Empty(t, preds)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.PredictBatch(ctx, []domain.Task{testTask(uuid.New(), 60)}, nil, domain.UserStats{}, predictorClock)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestService_SaveLoadRoundTrip(t *testing.T) {
	model, encoder, metrics := trainedModel(t)
	dir := t.TempDir()
	store := artifact.NewStore(dir, nil)

	bundle := ModelArtifact{
		Model:        model,
		Metrics:      metrics,
		FeatureOrder: feature.FeatureColumns,
		Version:      "20240507-100000",
		TrainedAt:    predictorClock,
	}
	require.NoError(t, store.Save(ModelArtifactName, bundle))
	require.NoError(t, store.Save(EncoderArtifactName, EncoderArtifact{
		SubjectClasses: encoder.Classes(),
		SavedAt:        predictorClock,
	}))

	// Predictions from the original model.
	original := NewService(store, nil)
	original.Swap(bundle, encoder)
	tasks := []domain.Task{testTask(uuid.New(), 45), testTask(uuid.New(), 100)}
	want, err := original.PredictBatch(context.Background(), tasks, nil, domain.UserStats{}, predictorClock)
	require.NoError(t, err)

	// A fresh service restored from disk must predict identically.
	restored := NewService(artifact.NewStore(dir, nil), nil)
	loaded, err := restored.LoadFromDisk()
	require.NoError(t, err)
	require.True(t, loaded)
	assert.True(t, restored.Available())
	assert.Equal(t, "20240507-100000", restored.Version())

	got, err := restored.PredictBatch(context.Background(), tasks, nil, domain.UserStats{}, predictorClock)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestService_LoadFromDisk_Misses(t *testing.T) {
	t.Run("empty store loads nothing", func(t *testing.T) {
		s := NewService(artifact.NewStore(t.TempDir(), nil), nil)
		loaded, err := s.LoadFromDisk()
		require.NoError(t, err)
		assert.False(t, loaded)
		assert.False(t, s.Available())
	})

	t.Run("untrained persisted model stays unavailable", func(t *testing.T) {
		dir := t.TempDir()
		store := artifact.NewStore(dir, nil)
		require.NoError(t, store.Save(ModelArtifactName, ModelArtifact{Model: regression.NewRidge()}))

		s := NewService(store, nil)
		loaded, err := s.LoadFromDisk()
		require.NoError(t, err)
		assert.False(t, loaded)
	})
}

func TestService_Confidence(t *testing.T) {
	t.Run("defaults when no metrics are present", func(t *testing.T) {
		s := NewService(artifact.NewStore(t.TempDir(), nil), nil)
		assert.Equal(t, 0.85, s.Confidence())
	})

	t.Run("clamps validation r2 into range", func(t *testing.T) {
		model, encoder, _ := trainedModel(t)
		s := NewService(artifact.NewStore(t.TempDir(), nil), nil)

		s.Swap(ModelArtifact{Model: model, Metrics: regression.Metrics{ValR2: 0.99, ValRows: 10}}, encoder)
		assert.Equal(t, 0.95, s.Confidence())

		s.Swap(ModelArtifact{Model: model, Metrics: regression.Metrics{ValR2: -0.4, ValRows: 10}}, encoder)
		assert.Equal(t, 0.5, s.Confidence())

		s.Swap(ModelArtifact{Model: model, Metrics: regression.Metrics{ValR2: 0.8, ValRows: 10}}, encoder)
		assert.Equal(t, 0.8, s.Confidence())
	})
}
