package database

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
)

// These exercise the schema_migration_log bookkeeping paths against a
// driver-level failure (e.g. "database is locked") that real SQLite won't
// reliably reproduce on demand, mirroring the teacher's own use of
// sqlmock for migrations_test.go.

func TestRunnerInitialiseWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migration_log").
		WillReturnError(errors.New("database is locked"))

	r := &Runner{db: db}
	err = r.Initialise()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindStore, ae.Kind)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerLogAppliedWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT OR REPLACE INTO schema_migration_log").
		WillReturnError(errors.New("disk I/O error"))

	r := &Runner{db: db}
	err = r.logApplied(1)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindStore, ae.Kind)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerLogRemovedSucceedsAgainstMockedDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM schema_migration_log WHERE version").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &Runner{db: db}
	require.NoError(t, r.logRemoved(2))
	require.NoError(t, mock.ExpectationsWereMet())
}
