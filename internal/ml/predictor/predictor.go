// Package predictor owns the live time-prediction model: loading persisted
// artifacts, swapping freshly trained ones, and serving batch predictions.
package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/ml/artifact"
	"github.com/studyloop/studyloop/internal/ml/feature"
	"github.com/studyloop/studyloop/internal/ml/regression"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

// Bundle names in the artifact store.
const (
	ModelArtifactName   = "time_model"
	EncoderArtifactName = "encoders"
)

// Confidence bounds reported alongside predictions.
const (
	minConfidence     = 0.5
	maxConfidence     = 0.95
	defaultConfidence = 0.85
)

// ModelArtifact is the persisted model bundle.
type ModelArtifact struct {
	Model        *regression.Ridge  `json:"model"`
	Metrics      regression.Metrics `json:"metrics"`
	FeatureOrder []string           `json:"feature_order"`
	Version      string             `json:"version"`
	TrainedAt    time.Time          `json:"trained_at"`
}

// EncoderArtifact is the persisted encoder bundle.
type EncoderArtifact struct {
	SubjectClasses []string  `json:"subject_classes"`
	SavedAt        time.Time `json:"saved_at"`
}

// state is swapped atomically so readers never observe a half-loaded model.
type state struct {
	model   *regression.Ridge
	metrics regression.Metrics
	version string
	encoder *feature.LabelEncoder
}

// Service serves predictions from the current model artifact. It implements
// the scheduler's DurationPredictor contract.
type Service struct {
	store   *artifact.Store
	logger  *slog.Logger
	current atomic.Pointer[state]
}

// NewService creates a predictor with no model loaded.
func NewService(store *artifact.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// LoadFromDisk restores the persisted model and encoder bundles, if any.
// Missing bundles are a soft miss; the service stays unavailable. Returns
// whether a model is now loaded.
func (s *Service) LoadFromDisk() (bool, error) {
	var modelBundle ModelArtifact
	found, err := s.store.Load(ModelArtifactName, &modelBundle)
	if err != nil {
		return false, fmt.Errorf("load model artifact: %w", err)
	}
	if !found || modelBundle.Model == nil || !modelBundle.Model.Trained {
		s.logger.Info("no persisted model found, predictor unavailable")
		return false, nil
	}

	encoder := feature.NewLabelEncoder()
	var encoderBundle EncoderArtifact
	encoderFound, err := s.store.Load(EncoderArtifactName, &encoderBundle)
	if err != nil {
		s.logger.Warn("encoder artifact unreadable, unknown subjects will use defaults", "error", err)
	} else if encoderFound {
		encoder = feature.NewLabelEncoderFromClasses(encoderBundle.SubjectClasses)
	}

	s.current.Store(&state{
		model:   modelBundle.Model,
		metrics: modelBundle.Metrics,
		version: modelBundle.Version,
		encoder: encoder,
	})

	s.logger.Info("model loaded",
		"version", modelBundle.Version,
		"val_mae", modelBundle.Metrics.ValMAE,
		"val_r2", modelBundle.Metrics.ValR2,
	)
	return true, nil
}

// Swap atomically replaces the live model with a freshly trained artifact.
func (s *Service) Swap(model ModelArtifact, encoder *feature.LabelEncoder) {
	s.current.Store(&state{
		model:   model.Model,
		metrics: model.Metrics,
		version: model.Version,
		encoder: encoder,
	})
	s.logger.Info("model swapped", "version", model.Version)
}

// Available reports whether a trained model is loaded.
func (s *Service) Available() bool {
	st := s.current.Load()
	return st != nil && st.model != nil && st.model.Trained
}

// EncodersLoaded reports whether a fitted subject encoder is loaded.
func (s *Service) EncodersLoaded() bool {
	st := s.current.Load()
	return st != nil && st.encoder != nil && st.encoder.Len() > 0
}

// Version returns the loaded model's version tag, or empty when none.
func (s *Service) Version() string {
	if st := s.current.Load(); st != nil {
		return st.version
	}
	return ""
}

// Confidence derives a confidence score from validation fit, clamped to
// [0.5, 0.95]. Models without validation metrics report the default.
func (s *Service) Confidence() float64 {
	st := s.current.Load()
	if st == nil || st.metrics.ValRows == 0 {
		return defaultConfidence
	}
	c := st.metrics.ValR2
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

// FeatureImportance exposes the loaded model's coefficient ranking.
func (s *Service) FeatureImportance() map[string]float64 {
	st := s.current.Load()
	if st == nil || st.model == nil {
		return map[string]float64{}
	}
	return st.model.FeatureImportance()
}

// PredictBatch predicts completion minutes per task. The whole batch shares
// one model snapshot, so a concurrent swap cannot mix models mid-batch.
func (s *Service) PredictBatch(ctx context.Context, tasks []domain.Task, stats map[uuid.UUID]domain.SubjectStats, userStats domain.UserStats, now time.Time) (map[uuid.UUID]int, error) {
	st := s.current.Load()
	if st == nil || st.model == nil || !st.model.Trained {
		return nil, domain.ErrNotTrained
	}
	if len(tasks) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engineer := feature.NewEngineer(s.logger)
	if st.encoder != nil {
		engineer.SetEncoder(st.encoder)
	}
	x := engineer.TransformForPrediction(tasks, stats, userStats, now)

	preds, err := st.model.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("batch prediction: %w", err)
	}

	out := make(map[uuid.UUID]int, len(tasks))
	for i, task := range tasks {
		out[task.ID] = int(math.Round(preds[i]))
	}
	return out, nil
}
