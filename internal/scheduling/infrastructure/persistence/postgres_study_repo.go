// Package persistence implements the scheduling StudyRepository for
// PostgreSQL and SQLite.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/database"
)

// recentWindowDays bounds the "recent" aggregates: RecentDifficulty and
// RecentStudyDays both look at the last 7 days of sessions.
const recentWindowDays = 7

// PostgresStudyRepository implements domain.StudyRepository using PostgreSQL.
type PostgresStudyRepository struct {
	conn database.Connection
}

// NewPostgresStudyRepository creates a PostgreSQL study repository.
func NewPostgresStudyRepository(conn database.Connection) *PostgresStudyRepository {
	return &PostgresStudyRepository{conn: conn}
}

// taskRow represents a database row for tasks joined with their subject.
type taskRow struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	SubjectID        uuid.UUID
	SubjectName      string
	Title            string
	EstimatedMinutes int
	Deadline         *time.Time
	Status           string
	TaskType         string
	CreatedAt        time.Time
}

func (row taskRow) toTask() domain.Task {
	return domain.Task{
		ID:               row.ID,
		UserID:           row.UserID,
		SubjectID:        row.SubjectID,
		SubjectName:      row.SubjectName,
		Title:            row.Title,
		EstimatedMinutes: row.EstimatedMinutes,
		Deadline:         row.Deadline,
		Status:           domain.TaskStatus(row.Status),
		Type:             domain.TaskType(row.TaskType),
		CreatedAt:        row.CreatedAt,
	}
}

// dataAccessErr tags a storage failure so callers can match domain.ErrDataAccess.
func dataAccessErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrDataAccess, err)
}

const taskColumns = `
	t.id, t.user_id, t.subject_id, s.name, t.title,
	t.estimated_minutes, t.deadline, t.status, t.task_type, t.created_at
`

// PendingTasks retrieves tasks still open for scheduling.
func (r *PostgresStudyRepository) PendingTasks(ctx context.Context, userID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN subjects s ON s.id = t.subject_id
		WHERE t.user_id = $1 AND t.status IN ('pending', 'in_progress')
		ORDER BY t.deadline NULLS LAST, t.created_at
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, userID)
	if err != nil {
		return nil, dataAccessErr("pending tasks", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// TasksByIDs retrieves the given tasks, restricted to the owning user.
// Unknown IDs are silently omitted.
func (r *PostgresStudyRepository) TasksByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN subjects s ON s.id = t.subject_id
		WHERE t.user_id = $1 AND t.id = ANY($2)
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, userID, ids)
	if err != nil {
		return nil, dataAccessErr("tasks by ids", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// SubjectStats aggregates session history per subject. Subjects with no
// sessions still appear, carrying the documented defaults.
func (r *PostgresStudyRepository) SubjectStats(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]domain.SubjectStats, error) {
	query := `
		SELECT
			s.id,
			s.name,
			AVG(ss.difficulty_rating),
			AVG(ss.difficulty_rating) FILTER (
				WHERE ss.completed_at >= NOW() - make_interval(days => $2)
			),
			AVG(ss.actual_minutes::float / NULLIF(t.estimated_minutes, 0)),
			COUNT(ss.id),
			MAX(ss.completed_at),
			COUNT(DISTINCT DATE(ss.completed_at)) FILTER (
				WHERE ss.completed_at >= NOW() - make_interval(days => $2)
			)
		FROM subjects s
		LEFT JOIN tasks t ON t.subject_id = s.id
		LEFT JOIN study_sessions ss ON ss.task_id = t.id
		WHERE s.user_id = $1
		GROUP BY s.id, s.name
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, userID, recentWindowDays)
	if err != nil {
		return nil, dataAccessErr("subject stats", err)
	}
	defer rows.Close()

	stats := make(map[uuid.UUID]domain.SubjectStats)
	for rows.Next() {
		var (
			id              uuid.UUID
			name            string
			avgDifficulty   *float64
			recentDiff      *float64
			avgTimeRatio    *float64
			sessionCount    int
			lastStudied     *time.Time
			recentStudyDays int
		)
		if err := rows.Scan(&id, &name, &avgDifficulty, &recentDiff, &avgTimeRatio,
			&sessionCount, &lastStudied, &recentStudyDays); err != nil {
			return nil, dataAccessErr("subject stats scan", err)
		}
		stats[id] = buildSubjectStats(id, name, avgDifficulty, recentDiff, avgTimeRatio,
			sessionCount, lastStudied, recentStudyDays)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessErr("subject stats rows", err)
	}

	return stats, nil
}

// UserStats aggregates session history across all of a user's subjects.
func (r *PostgresStudyRepository) UserStats(ctx context.Context, userID uuid.UUID) (domain.UserStats, error) {
	query := `
		SELECT
			AVG(ss.actual_minutes::float / NULLIF(t.estimated_minutes, 0)),
			COUNT(ss.id)
		FROM study_sessions ss
		JOIN tasks t ON t.id = ss.task_id
		WHERE ss.user_id = $1
	`

	var (
		avgTimeRatio *float64
		sessionCount int
	)
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, userID).Scan(&avgTimeRatio, &sessionCount)
	if err != nil {
		return domain.UserStats{}, dataAccessErr("user stats", err)
	}

	return buildUserStats(userID, avgTimeRatio, sessionCount), nil
}

// TrainingHistory returns all completed sessions usable as training rows,
// oldest first.
func (r *PostgresStudyRepository) TrainingHistory(ctx context.Context) ([]domain.TrainingRow, error) {
	query := `
		SELECT
			ss.id, ss.task_id, ss.user_id, t.subject_id, s.name,
			t.estimated_minutes, ss.actual_minutes, ss.difficulty_rating,
			t.deadline, ss.completed_at
		FROM study_sessions ss
		JOIN tasks t ON t.id = ss.task_id
		JOIN subjects s ON s.id = t.subject_id
		WHERE ss.actual_minutes > 0 AND t.estimated_minutes > 0
		ORDER BY ss.completed_at
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query)
	if err != nil {
		return nil, dataAccessErr("training history", err)
	}
	defer rows.Close()

	var history []domain.TrainingRow
	for rows.Next() {
		var row domain.TrainingRow
		if err := rows.Scan(
			&row.SessionID,
			&row.TaskID,
			&row.UserID,
			&row.SubjectID,
			&row.SubjectName,
			&row.EstimatedMinutes,
			&row.ActualMinutes,
			&row.DifficultyRating,
			&row.Deadline,
			&row.CompletedAt,
		); err != nil {
			return nil, dataAccessErr("training history scan", err)
		}
		if err := row.Session().Validate(); err != nil {
			return nil, dataAccessErr("invalid session row", err)
		}
		history = append(history, row)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessErr("training history rows", err)
	}

	return history, nil
}

// TrainingRowCount counts sessions usable as training rows.
func (r *PostgresStudyRepository) TrainingRowCount(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(ss.id)
		FROM study_sessions ss
		JOIN tasks t ON t.id = ss.task_id
		WHERE ss.actual_minutes > 0 AND t.estimated_minutes > 0
	`

	var count int
	exec := database.ExecutorFromContext(ctx, r.conn)
	if err := exec.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, dataAccessErr("training row count", err)
	}

	return count, nil
}

func scanTasks(rows database.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		var row taskRow
		if err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.SubjectID,
			&row.SubjectName,
			&row.Title,
			&row.EstimatedMinutes,
			&row.Deadline,
			&row.Status,
			&row.TaskType,
			&row.CreatedAt,
		); err != nil {
			return nil, dataAccessErr("task scan", err)
		}
		task := row.toTask()
		if err := task.Validate(); err != nil {
			return nil, dataAccessErr("invalid task row", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessErr("task rows", err)
	}
	return tasks, nil
}

// buildSubjectStats applies the documented defaults for subjects with sparse
// or missing history: difficulty 3.0, recent difficulty falls back to the
// overall average, time ratio 1.0.
func buildSubjectStats(
	id uuid.UUID,
	name string,
	avgDifficulty, recentDifficulty, avgTimeRatio *float64,
	sessionCount int,
	lastStudied *time.Time,
	recentStudyDays int,
) domain.SubjectStats {
	stats := domain.DefaultSubjectStats(id, name)
	if avgDifficulty != nil {
		stats.AvgDifficulty = *avgDifficulty
		stats.RecentDifficulty = *avgDifficulty
	}
	if recentDifficulty != nil {
		stats.RecentDifficulty = *recentDifficulty
	}
	if avgTimeRatio != nil {
		stats.AvgTimeRatio = *avgTimeRatio
	}
	stats.SessionCount = sessionCount
	stats.LastStudied = lastStudied
	stats.RecentStudyDays = recentStudyDays
	return stats
}

func buildUserStats(userID uuid.UUID, avgTimeRatio *float64, sessionCount int) domain.UserStats {
	stats := domain.DefaultUserStats(userID)
	if avgTimeRatio != nil {
		stats.AvgTimeRatio = *avgTimeRatio
	}
	stats.SessionCount = sessionCount
	return stats
}
