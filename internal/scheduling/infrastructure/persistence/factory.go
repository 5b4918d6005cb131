package persistence

import (
	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/database"
)

// NewStudyRepository returns the repository implementation matching the
// connection's driver.
func NewStudyRepository(conn database.Connection) domain.StudyRepository {
	if conn.Driver() == database.DriverSQLite {
		return NewSQLiteStudyRepository(conn)
	}
	return NewPostgresStudyRepository(conn)
}
