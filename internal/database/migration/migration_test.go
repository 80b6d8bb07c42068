package migration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appliedCols = []string{"module", "version", "checksum", "applied_at", "execution_time_ms"}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func expectTracking(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS _schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectApplied)).WillReturnRows(rows)
}

func expectApply(mock sqlmock.Sqlmock, m Migration) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(m.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertApplied)).
		WithArgs(m.Module, m.Version, m.Name, m.Checksum(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestMigration_IDAndChecksum(t *testing.T) {
	m := Users[0]
	assert.Equal(t, "users:version_1", m.ID())
	assert.Len(t, m.Checksum(), 64)
	assert.Equal(t, m.Checksum(), Users[0].Checksum())

	edited := m
	edited.SQL += " "
	assert.NotEqual(t, m.Checksum(), edited.Checksum())
}

func TestAll(t *testing.T) {
	all := All()
	require.NoError(t, validate(all))
	require.Len(t, all, len(Users))
	assert.Equal(t, "create_table_users", all[0].Name)

	all[0].Name = "mutated"
	assert.Equal(t, "create_table_users", Users[0].Name, "All returns a copy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   []Migration
	}{
		{"duplicate version", []Migration{{Module: "users", Version: 1}, {Module: "users", Version: 1}}},
		{"descending version", []Migration{{Module: "users", Version: 2}, {Module: "users", Version: 1}}},
		{"missing module", []Migration{{Version: 1}}},
		{"zero version", []Migration{{Module: "users"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validate(tt.in))
		})
	}
	assert.NoError(t, validate([]Migration{{Module: "users", Version: 1}, {Module: "audit", Version: 1}, {Module: "users", Version: 5}}))
}

func TestRunner_Up(t *testing.T) {
	ctx := context.Background()

	t.Run("applies everything on an empty database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		var buf bytes.Buffer
		r := NewRunner(db, slog.New(slog.NewJSONHandler(&buf, nil)))

		expectTracking(mock, sqlmock.NewRows(appliedCols))
		for _, m := range Users {
			expectApply(mock, m)
		}

		n, err := r.Up(ctx, Users)
		require.NoError(t, err)
		assert.Equal(t, len(Users), n)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Contains(t, buf.String(), "db_migration_success")
		assert.Contains(t, buf.String(), "users:version_3")
	})

	t.Run("applies only what is missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(appliedCols).
			AddRow("users", 1, Users[0].Checksum(), time.Now(), int64(4))
		expectTracking(mock, rows)
		expectApply(mock, Users[1])
		expectApply(mock, Users[2])

		n, err := NewRunner(db, discard()).Up(ctx, Users)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(appliedCols)
		for _, m := range Users {
			rows.AddRow(m.Module, m.Version, m.Checksum(), time.Now(), int64(1))
		}
		expectTracking(mock, rows)

		var buf bytes.Buffer
		n, err := NewRunner(db, slog.New(slog.NewJSONHandler(&buf, nil))).Up(ctx, Users)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Contains(t, buf.String(), "db_migration_skip")
	})

	t.Run("edited migration stops the run", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(appliedCols).
			AddRow("users", 1, "0000", time.Now(), int64(1))
		expectTracking(mock, rows)

		n, err := NewRunner(db, discard()).Up(ctx, Users)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrChecksumMismatch))
		assert.Contains(t, err.Error(), "users:version_1")
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failing step rolls back and stops", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expectTracking(mock, sqlmock.NewRows(appliedCols))
		expectApply(mock, Users[0])
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(Users[1].SQL)).WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		n, err := NewRunner(db, discard()).Up(ctx, Users)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create_index_users_age")
		assert.Equal(t, 1, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tracking table unavailable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS _schema_migrations").WillReturnError(errors.New("connection reset"))

		_, err = NewRunner(db, discard()).Up(ctx, Users)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "_schema_migrations")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunner_Status(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(appliedCols).
		AddRow("users", 1, Users[0].Checksum(), at, int64(12)).
		AddRow("users", 2, "stale", at, int64(3))
	expectTracking(mock, rows)

	got, err := NewRunner(db, discard()).Status(context.Background(), Users)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].Applied)
	assert.False(t, got[0].Drifted)
	assert.Equal(t, at, got[0].AppliedAt)
	assert.Equal(t, 12*time.Millisecond, got[0].ExecutionTime)

	assert.True(t, got[1].Applied)
	assert.True(t, got[1].Drifted)

	assert.False(t, got[2].Applied)
	assert.Equal(t, "create_index_users_created_at", got[2].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTracking(mock, sqlmock.NewRows(appliedCols))
	for _, m := range All() {
		expectApply(mock, m)
	}

	require.NoError(t, EnsureMigrated(context.Background(), db, discard()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
