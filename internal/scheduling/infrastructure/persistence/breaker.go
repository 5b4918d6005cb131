package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

// BreakerConfig tunes the repository circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns conservative defaults: trip after 5
// consecutive failures, probe again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerRepository wraps a StudyRepository with a circuit breaker so a dead
// database fails fast instead of stalling every schedule request.
type BreakerRepository struct {
	inner   domain.StudyRepository
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerRepository decorates a repository with circuit breaking.
func NewBreakerRepository(inner domain.StudyRepository, cfg BreakerConfig, logger *slog.Logger) *BreakerRepository {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "study-repository",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerRepository{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (r *BreakerRepository) execute(fn func() (any, error)) (any, error) {
	result, err := r.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, dataAccessErr("circuit open", err)
	}
	return result, err
}

func (r *BreakerRepository) PendingTasks(ctx context.Context, userID uuid.UUID) ([]domain.Task, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.PendingTasks(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Task), nil
}

func (r *BreakerRepository) TasksByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]domain.Task, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.TasksByIDs(ctx, userID, ids)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Task), nil
}

func (r *BreakerRepository) SubjectStats(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]domain.SubjectStats, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.SubjectStats(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[uuid.UUID]domain.SubjectStats), nil
}

func (r *BreakerRepository) UserStats(ctx context.Context, userID uuid.UUID) (domain.UserStats, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.UserStats(ctx, userID)
	})
	if err != nil {
		return domain.UserStats{}, err
	}
	return result.(domain.UserStats), nil
}

func (r *BreakerRepository) TrainingHistory(ctx context.Context) ([]domain.TrainingRow, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.TrainingHistory(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.TrainingRow), nil
}

func (r *BreakerRepository) TrainingRowCount(ctx context.Context) (int, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.TrainingRowCount(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}
