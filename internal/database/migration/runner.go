package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrChecksumMismatch means an applied migration was edited afterwards.
var ErrChecksumMismatch = errors.New("checksum mismatch")

const trackingTable = "_schema_migrations"

const createTrackingTable = `CREATE TABLE IF NOT EXISTS _schema_migrations (
  id                SERIAL       PRIMARY KEY,
  module            VARCHAR(100) NOT NULL,
  version           INTEGER      NOT NULL,
  name              VARCHAR(255) NOT NULL,
  checksum          VARCHAR(64)  NOT NULL,
  applied_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
  execution_time_ms BIGINT       NOT NULL DEFAULT 0,
  UNIQUE (module, version)
);`

const (
	selectApplied = `SELECT module, version, checksum, applied_at, execution_time_ms FROM _schema_migrations ORDER BY module, version`
	insertApplied = `INSERT INTO _schema_migrations (module, version, name, checksum, execution_time_ms) VALUES ($1, $2, $3, $4, $5)`
)

// Status describes one known migration against the tracking table.
type Status struct {
	Migration
	Applied       bool
	AppliedAt     time.Time
	ExecutionTime time.Duration
	// Drifted is set when the recorded checksum differs from the current SQL.
	Drifted bool
}

type record struct {
	checksum  string
	appliedAt time.Time
	took      time.Duration
}

type key struct {
	module  string
	version int
}

// Runner applies migrations and reports their state.
type Runner struct {
	db  *sql.DB
	log *slog.Logger
}

func NewRunner(db *sql.DB, logger *slog.Logger) *Runner {
	return &Runner{db: db, log: logger.With(slog.String("component", "database"))}
}

// Up applies every pending migration in order, each in its own transaction
// together with its tracking row. It returns how many were applied. Nothing
// runs when an applied migration no longer matches its recorded checksum.
func (r *Runner) Up(ctx context.Context, migrations []Migration) (int, error) {
	start := time.Now()
	if err := validate(migrations); err != nil {
		return 0, err
	}

	applied, err := r.applied(ctx)
	if err != nil {
		r.log.Error("db_migration_failed", slog.String("error", err.Error()))
		return 0, err
	}

	var pending []Migration
	for _, m := range migrations {
		rec, ok := applied[key{m.Module, m.Version}]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if rec.checksum != m.Checksum() {
			r.log.Error("db_migration_failed",
				slog.String("migration", m.ID()),
				slog.String("error", ErrChecksumMismatch.Error()),
			)
			return 0, fmt.Errorf("migration %s: %w", m.ID(), ErrChecksumMismatch)
		}
	}

	if len(pending) == 0 {
		r.log.Info("db_migration_skip",
			slog.Int("applied", len(applied)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return 0, nil
	}

	r.log.Info("db_migration_start", slog.Int("pending", len(pending)))
	for i, m := range pending {
		took, err := r.apply(ctx, m)
		if err != nil {
			r.log.Error("db_migration_failed",
				slog.String("migration", m.ID()),
				slog.String("name", m.Name),
				slog.String("error", err.Error()),
			)
			return i, fmt.Errorf("migration %s (%s): %w", m.ID(), m.Name, err)
		}
		r.log.Info("db_migration_step",
			slog.String("migration", m.ID()),
			slog.String("name", m.Name),
			slog.Int64("step_duration_ms", took.Milliseconds()),
		)
	}

	r.log.Info("db_migration_success",
		slog.Int("applied", len(pending)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return len(pending), nil
}

// Status reports every known migration, in the given order, with its
// tracking record if one exists.
func (r *Runner) Status(ctx context.Context, migrations []Migration) ([]Status, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(migrations))
	for _, m := range migrations {
		st := Status{Migration: m}
		if rec, ok := applied[key{m.Module, m.Version}]; ok {
			st.Applied = true
			st.AppliedAt = rec.appliedAt
			st.ExecutionTime = rec.took
			st.Drifted = rec.checksum != m.Checksum()
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *Runner) applied(ctx context.Context) (map[key]record, error) {
	if _, err := r.db.ExecContext(ctx, createTrackingTable); err != nil {
		return nil, fmt.Errorf("create %s: %w", trackingTable, err)
	}

	rows, err := r.db.QueryContext(ctx, selectApplied)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", trackingTable, err)
	}
	defer rows.Close()

	out := map[key]record{}
	for rows.Next() {
		var (
			k  key
			rc record
			ms int64
		)
		if err := rows.Scan(&k.module, &k.version, &rc.checksum, &rc.appliedAt, &ms); err != nil {
			return nil, fmt.Errorf("scan %s: %w", trackingTable, err)
		}
		rc.took = time.Duration(ms) * time.Millisecond
		out[k] = rc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", trackingTable, err)
	}
	return out, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) (time.Duration, error) {
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return 0, err
	}
	took := time.Since(start)
	if _, err := tx.ExecContext(ctx, insertApplied,
		m.Module, m.Version, m.Name, m.Checksum(), took.Milliseconds(),
	); err != nil {
		return 0, fmt.Errorf("record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return took, nil
}

// EnsureMigrated applies every pending migration of All.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	_, err := NewRunner(db, logger).Up(ctx, All())
	return err
}
