package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/database"
)

// SQLiteStudyRepository implements domain.StudyRepository using SQLite.
// UUIDs and timestamps are stored as TEXT (RFC 3339 for timestamps).
type SQLiteStudyRepository struct {
	conn database.Connection
}

// NewSQLiteStudyRepository creates a SQLite study repository.
func NewSQLiteStudyRepository(conn database.Connection) *SQLiteStudyRepository {
	return &SQLiteStudyRepository{conn: conn}
}

func recentWindowModifier() string {
	return fmt.Sprintf("-%d days", recentWindowDays)
}

// PendingTasks retrieves tasks still open for scheduling.
func (r *SQLiteStudyRepository) PendingTasks(ctx context.Context, userID uuid.UUID) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN subjects s ON s.id = t.subject_id
		WHERE t.user_id = ? AND t.status IN ('pending', 'in_progress')
		ORDER BY t.deadline IS NULL, t.deadline, t.created_at
	`

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, userID.String())
	if err != nil {
		return nil, dataAccessErr("pending tasks", err)
	}
	defer rows.Close()

	return scanTextTasks(rows)
}

// TasksByIDs retrieves the given tasks, restricted to the owning user.
// Unknown IDs are silently omitted.
func (r *SQLiteStudyRepository) TasksByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN subjects s ON s.id = t.subject_id
		WHERE t.user_id = ? AND t.id IN (` + placeholders + `)
	`

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID.String())
	for _, id := range ids {
		args = append(args, id.String())
	}

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, dataAccessErr("tasks by ids", err)
	}
	defer rows.Close()

	return scanTextTasks(rows)
}

// SubjectStats aggregates session history per subject. Subjects with no
// sessions still appear, carrying the documented defaults.
func (r *SQLiteStudyRepository) SubjectStats(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]domain.SubjectStats, error) {
	query := `
		SELECT
			s.id,
			s.name,
			AVG(ss.difficulty_rating),
			AVG(CASE WHEN datetime(ss.completed_at) >= datetime('now', ?)
				THEN ss.difficulty_rating END),
			AVG(CAST(ss.actual_minutes AS REAL) / NULLIF(t.estimated_minutes, 0)),
			COUNT(ss.id),
			MAX(ss.completed_at),
			COUNT(DISTINCT CASE WHEN datetime(ss.completed_at) >= datetime('now', ?)
				THEN DATE(ss.completed_at) END)
		FROM subjects s
		LEFT JOIN tasks t ON t.subject_id = s.id
		LEFT JOIN study_sessions ss ON ss.task_id = t.id
		WHERE s.user_id = ?
		GROUP BY s.id, s.name
	`

	window := recentWindowModifier()
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, window, window, userID.String())
	if err != nil {
		return nil, dataAccessErr("subject stats", err)
	}
	defer rows.Close()

	stats := make(map[uuid.UUID]domain.SubjectStats)
	for rows.Next() {
		var (
			rawID           string
			name            string
			avgDifficulty   sql.NullFloat64
			recentDiff      sql.NullFloat64
			avgTimeRatio    sql.NullFloat64
			sessionCount    int
			lastStudied     sql.NullString
			recentStudyDays int
		)
		if err := rows.Scan(&rawID, &name, &avgDifficulty, &recentDiff, &avgTimeRatio,
			&sessionCount, &lastStudied, &recentStudyDays); err != nil {
			return nil, dataAccessErr("subject stats scan", err)
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, dataAccessErr("subject stats id", err)
		}
		last, err := parseNullTime(lastStudied)
		if err != nil {
			return nil, dataAccessErr("subject stats time", err)
		}

		stats[id] = buildSubjectStats(id, name,
			nullFloat(avgDifficulty), nullFloat(recentDiff), nullFloat(avgTimeRatio),
			sessionCount, last, recentStudyDays)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessErr("subject stats rows", err)
	}

	return stats, nil
}

// UserStats aggregates session history across all of a user's subjects.
func (r *SQLiteStudyRepository) UserStats(ctx context.Context, userID uuid.UUID) (domain.UserStats, error) {
	query := `
		SELECT
			AVG(CAST(ss.actual_minutes AS REAL) / NULLIF(t.estimated_minutes, 0)),
			COUNT(ss.id)
		FROM study_sessions ss
		JOIN tasks t ON t.id = ss.task_id
		WHERE ss.user_id = ?
	`

	var (
		avgTimeRatio sql.NullFloat64
		sessionCount int
	)
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, userID.String()).Scan(&avgTimeRatio, &sessionCount)
	if err != nil {
		return domain.UserStats{}, dataAccessErr("user stats", err)
	}

	return buildUserStats(userID, nullFloat(avgTimeRatio), sessionCount), nil
}

// TrainingHistory returns all completed sessions usable as training rows,
// oldest first.
func (r *SQLiteStudyRepository) TrainingHistory(ctx context.Context) ([]domain.TrainingRow, error) {
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
		var (
			rawSessionID string
			rawTaskID    string
			rawUserID    string
			rawSubjectID string
			deadline     sql.NullString
			completedAt  string
			row          domain.TrainingRow
		)
		if err := rows.Scan(
			&rawSessionID,
			&rawTaskID,
			&rawUserID,
			&rawSubjectID,
			&row.SubjectName,
			&row.EstimatedMinutes,
			&row.ActualMinutes,
			&row.DifficultyRating,
			&deadline,
			&completedAt,
		); err != nil {
			return nil, dataAccessErr("training history scan", err)
		}

		if err := parseUUIDs(map[*uuid.UUID]string{
			&row.SessionID: rawSessionID,
			&row.TaskID:    rawTaskID,
			&row.UserID:    rawUserID,
			&row.SubjectID: rawSubjectID,
		}); err != nil {
			return nil, dataAccessErr("training history id", err)
		}
		if row.Deadline, err = parseNullTime(deadline); err != nil {
			return nil, dataAccessErr("training history time", err)
		}
		if row.CompletedAt, err = time.Parse(time.RFC3339, completedAt); err != nil {
			return nil, dataAccessErr("training history time", err)
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
func (r *SQLiteStudyRepository) TrainingRowCount(ctx context.Context) (int, error) {
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

func scanTextTasks(rows database.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		var (
			rawID        string
			rawUserID    string
			rawSubjectID string
			deadline     sql.NullString
			createdAt    string
			row          taskRow
		)
		if err := rows.Scan(
			&rawID,
			&rawUserID,
			&rawSubjectID,
			&row.SubjectName,
			&row.Title,
			&row.EstimatedMinutes,
			&deadline,
			&row.Status,
			&row.TaskType,
			&createdAt,
		); err != nil {
			return nil, dataAccessErr("task scan", err)
		}

		if err := parseUUIDs(map[*uuid.UUID]string{
			&row.ID:        rawID,
			&row.UserID:    rawUserID,
			&row.SubjectID: rawSubjectID,
		}); err != nil {
			return nil, dataAccessErr("task id", err)
		}

		var err error
		if row.Deadline, err = parseNullTime(deadline); err != nil {
			return nil, dataAccessErr("task time", err)
		}
		if row.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, dataAccessErr("task time", err)
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

func parseUUIDs(raw map[*uuid.UUID]string) error {
	for dst, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return err
		}
		*dst = id
	}
	return nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
