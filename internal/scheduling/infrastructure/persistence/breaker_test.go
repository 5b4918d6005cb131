package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
)

type flakyRepo struct {
	err   error
	tasks []domain.Task
	calls int
}

func (f *flakyRepo) PendingTasks(ctx context.Context, userID uuid.UUID) ([]domain.Task, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks, nil
}

func (f *flakyRepo) TasksByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]domain.Task, error) {
	return f.tasks, f.err
}

func (f *flakyRepo) SubjectStats(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]domain.SubjectStats, error) {
	return map[uuid.UUID]domain.SubjectStats{}, f.err
}

func (f *flakyRepo) UserStats(ctx context.Context, userID uuid.UUID) (domain.UserStats, error) {
	return domain.DefaultUserStats(userID), f.err
}

func (f *flakyRepo) TrainingHistory(ctx context.Context) ([]domain.TrainingRow, error) {
	return nil, f.err
}

func (f *flakyRepo) TrainingRowCount(ctx context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 42, nil
}

func TestBreakerRepository(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("passes results through when healthy", func(t *testing.T) {
		inner := &flakyRepo{tasks: []domain.Task{{ID: uuid.New(), Title: "ok"}}}
		repo := NewBreakerRepository(inner, DefaultBreakerConfig(), nil)

		tasks, err := repo.PendingTasks(ctx, userID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "ok", tasks[0].Title)

		count, err := repo.TrainingRowCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 42, count)
	})

	t.Run("opens after consecutive failures and stops calling through", func(t *testing.T) {
		inner := &flakyRepo{err: errors.New("connection refused")}
		cfg := DefaultBreakerConfig()
		cfg.FailureThreshold = 3
		repo := NewBreakerRepository(inner, cfg, nil)

		for i := 0; i < 3; i++ {
			_, err := repo.PendingTasks(ctx, userID)
			require.Error(t, err)
		}
		callsWhenOpened := inner.calls

		_, err := repo.PendingTasks(ctx, userID)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDataAccess)
		assert.Equal(t, callsWhenOpened, inner.calls)
	})
}
