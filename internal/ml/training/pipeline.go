// Package training orchestrates the model training pipeline: data checks,
// feature preparation, fitting, persistence, and the post-swap smoke test.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/ml/artifact"
	"github.com/studyloop/studyloop/internal/ml/feature"
	"github.com/studyloop/studyloop/internal/ml/predictor"
	"github.com/studyloop/studyloop/internal/ml/regression"
	"github.com/studyloop/studyloop/internal/scheduling/application/services"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/eventbus"
	"github.com/studyloop/studyloop/pkg/observability"
)

// Stage identifies a step of the training pipeline.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageDataCheck      Stage = "data_check"
	StageDataGeneration Stage = "data_generation"
	StageFeaturePrep    Stage = "feature_prep"
	StageTrain          Stage = "train"
	StagePersist        Stage = "persist"
	StageSmokeTest      Stage = "smoke_test"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// DefaultMinRows is the minimum training-set size before a run proceeds.
const DefaultMinRows = 100

// DataGenerator fills the gap when history is too small to train on.
// Synthetic data belongs to the collaborating task system, so the default
// implementation only reports the shortfall.
type DataGenerator interface {
	Generate(ctx context.Context, needed int) error
}

// NoopDataGenerator declines to generate data.
type NoopDataGenerator struct{}

func (NoopDataGenerator) Generate(ctx context.Context, needed int) error {
	return fmt.Errorf("%d more sessions needed: %w", needed, domain.ErrInsufficientData)
}

// Result summarizes a completed training run.
type Result struct {
	Version string
	Rows    int
	Metrics regression.Metrics
	Stage   Stage
}

// Config tunes a pipeline.
type Config struct {
	MinRows         int
	ValidationSplit float64
	// SmokeUserID is the user the post-training smoke test schedules for.
	// Zero skips the smoke test.
	SmokeUserID uuid.UUID
}

// Pipeline runs training end to end and swaps the live predictor on success.
type Pipeline struct {
	repo      domain.StudyRepository
	store     *artifact.Store
	predictor *predictor.Service
	scheduler *services.Scheduler
	publisher eventbus.Publisher
	lock      Lock
	generator DataGenerator
	cfg       Config
	logger    *slog.Logger
	metrics   observability.Metrics
}

// NewPipeline wires a training pipeline. The scheduler may be nil; the smoke
// test is then skipped.
func NewPipeline(
	repo domain.StudyRepository,
	store *artifact.Store,
	pred *predictor.Service,
	scheduler *services.Scheduler,
	publisher eventbus.Publisher,
	lock Lock,
	generator DataGenerator,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	if cfg.MinRows <= 0 {
		cfg.MinRows = DefaultMinRows
	}
	if cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1 {
		cfg.ValidationSplit = 0.2
	}
	if generator == nil {
		generator = NoopDataGenerator{}
	}
	if publisher == nil {
		publisher = eventbus.NewNoopPublisher(logger)
	}
	if lock == nil {
		lock = NewLocalLock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		repo:      repo,
		store:     store,
		predictor: pred,
		scheduler: scheduler,
		publisher: publisher,
		lock:      lock,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
		metrics:   observability.NoopMetrics{},
	}
}

// WithMetrics sets the metrics collector used to time runs.
func (p *Pipeline) WithMetrics(m observability.Metrics) *Pipeline {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Run executes the pipeline. Only one run may be active at a time; a held
// lock yields ErrTrainingInProgress. Any stage failure halts the run and
// publishes a model.train_failed event carrying the stage and error.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	timer := observability.StartTimer("training.run").WithMetrics(p.metrics)
	result, err := p.run(ctx)
	timer.StopWithError(err)
	return result, err
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	acquired, err := p.lock.Acquire(ctx)
	if err != nil {
		return Result{Stage: StageFailed}, fmt.Errorf("training lock: %w", err)
	}
	if !acquired {
		return Result{Stage: StageFailed}, domain.ErrTrainingInProgress
	}
	defer func() {
		if err := p.lock.Release(ctx); err != nil {
			p.logger.Warn("training lock release failed", "error", err)
		}
	}()

	start := time.Now()
	p.logger.Info("training run started", "min_rows", p.cfg.MinRows)

	// Data check
	count, err := p.repo.TrainingRowCount(ctx)
	if err != nil {
		return p.fail(ctx, StageDataCheck, err)
	}
	p.logger.Info("training data counted", "rows", count)

	if count < p.cfg.MinRows {
		if err := p.generator.Generate(ctx, p.cfg.MinRows-count); err != nil {
			return p.fail(ctx, StageDataGeneration, err)
		}
		if count, err = p.repo.TrainingRowCount(ctx); err != nil {
			return p.fail(ctx, StageDataGeneration, err)
		}
		if count < p.cfg.MinRows {
			return p.fail(ctx, StageDataGeneration,
				fmt.Errorf("still %d rows after generation: %w", count, domain.ErrInsufficientData))
		}
	}

	// Feature prep
	rows, err := p.repo.TrainingHistory(ctx)
	if err != nil {
		return p.fail(ctx, StageFeaturePrep, err)
	}
	engineer := feature.NewEngineer(p.logger)
	x, y, err := engineer.FitTransform(rows)
	if err != nil {
		return p.fail(ctx, StageFeaturePrep, err)
	}

	// Train
	model := regression.NewRidge()
	metrics, err := model.Train(x, y, p.cfg.ValidationSplit)
	if err != nil {
		return p.fail(ctx, StageTrain, err)
	}
	p.logger.Info("model trained",
		"train_mae", metrics.TrainMAE,
		"val_mae", metrics.ValMAE,
		"val_r2", metrics.ValR2,
	)
	if top := TopFeatures(model.FeatureImportance(), 5); len(top) > 0 {
		p.logger.Info("feature importance", "top", strings.Join(top, ", "))
	}

	// Persist
	trainedAt := time.Now().UTC()
	version := trainedAt.Format("20060102-150405")
	bundle := predictor.ModelArtifact{
		Model:        model,
		Metrics:      metrics,
		FeatureOrder: feature.FeatureColumns,
		Version:      version,
		TrainedAt:    trainedAt,
	}
	if err := p.store.Save(predictor.EncoderArtifactName, predictor.EncoderArtifact{
		SubjectClasses: engineer.Encoder().Classes(),
		SavedAt:        trainedAt,
	}); err != nil {
		return p.fail(ctx, StagePersist, err)
	}
	if err := p.store.Save(predictor.ModelArtifactName, bundle); err != nil {
		return p.fail(ctx, StagePersist, err)
	}

	p.predictor.Swap(bundle, engineer.Encoder())

	if err := eventbus.PublishJSON(ctx, p.publisher, eventbus.RoutingKeyModelTrained, eventbus.ModelTrainedEvent{
		ModelVersion: version,
		TrainingRows: len(rows),
		TrainMAE:     metrics.TrainMAE,
		ValMAE:       metrics.ValMAE,
		ValR2:        metrics.ValR2,
		TrainedAt:    trainedAt,
	}); err != nil {
		p.logger.Warn("model.trained publish failed", "error", err)
	}

	p.smokeTest(ctx)

	p.logger.Info("training run finished",
		"version", version,
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		Version: version,
		Rows:    len(rows),
		Metrics: metrics,
		Stage:   StageDone,
	}, nil
}

// smokeTest exercises the fresh model through the public paths. Failures are
// logged, never fatal: the model already validated and persisted.
func (p *Pipeline) smokeTest(ctx context.Context) {
	if p.scheduler == nil || p.cfg.SmokeUserID == uuid.Nil {
		return
	}

	schedule, err := p.scheduler.GenerateDailySchedule(ctx, p.cfg.SmokeUserID, services.DefaultMaxTasks, time.Now())
	if err != nil {
		p.logger.Warn("smoke test schedule failed", "error", err)
		return
	}
	predicted := 0
	for _, task := range schedule {
		if task.PredictedMinutes != nil {
			predicted++
		}
	}
	p.logger.Info("smoke test passed",
		"user_id", p.cfg.SmokeUserID,
		"tasks", len(schedule),
		"predicted", predicted,
	)
}

func (p *Pipeline) fail(ctx context.Context, stage Stage, err error) (Result, error) {
	p.logger.Error("training run failed", "stage", string(stage), "error", err)

	if pubErr := eventbus.PublishJSON(ctx, p.publisher, eventbus.RoutingKeyModelTrainFailed, eventbus.ModelTrainFailedEvent{
		Stage:    string(stage),
		Reason:   err.Error(),
		FailedAt: time.Now().UTC(),
	}); pubErr != nil {
		p.logger.Warn("model.train_failed publish failed", "error", pubErr)
	}

	return Result{Stage: StageFailed}, fmt.Errorf("stage %s: %w", stage, err)
}

// TopFeatures formats the n highest-ranked features as name=weight pairs,
// ordered by descending importance.
func TopFeatures(importance map[string]float64, n int) []string {
	names := make([]string, 0, len(importance))
	for name := range importance {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if importance[names[i]] != importance[names[j]] {
			return importance[names[i]] > importance[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = fmt.Sprintf("%s=%.3f", name, importance[name])
	}
	return out
}
