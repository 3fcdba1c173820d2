package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationDescriptions gives each migration version the human-readable
// description recorded in schema_migration_log, mirroring the logical
// schema_migrations(version, description, applied_at) table spec.md §6
// describes. golang-migrate's own bookkeeping table only ever tracks
// (version, dirty); this log is the engine's own addition layered on top.
var migrationDescriptions = map[uint]string{
	1: "canonical schema: profiles, subjects, questions, assets, progress, achievements, custom_mixes",
	2: "seed canonical subjects",
}

// Runner drives the embedded migration set up and down one version at a
// time, so each transition can be logged to schema_migration_log.
type Runner struct {
	db *sql.DB
	m  *migrate.Migrate
}

// NewRunner builds a Runner bound to db, using the migrations embedded in
// this package at build time.
func NewRunner(db *sql.DB) (*Runner, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("loading embedded migrations: %w", err))
	}
	driver, err := sqlite3migrate.WithInstance(db, &sqlite3migrate.Config{})
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("creating sqlite3 migration driver: %w", err))
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, apperr.Store(fmt.Errorf("constructing migration runner: %w", err))
	}
	return &Runner{db: db, m: m}, nil
}

// Initialise creates the schema_migration_log bookkeeping table. It is
// idempotent and safe to call on every engine start.
func (r *Runner) Initialise() error {
	const stmt = `
	CREATE TABLE IF NOT EXISTS schema_migration_log (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME NOT NULL
	)`
	if _, err := r.db.Exec(stmt); err != nil {
		return apperr.Store(fmt.Errorf("initialising schema_migration_log: %w", err))
	}
	return nil
}

// CurrentVersion reports the latest applied migration version. A fresh
// database (no migrations applied yet) reports version 0.
func (r *Runner) CurrentVersion() (uint32, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Store(fmt.Errorf("reading migration version: %w", err))
	}
	if dirty {
		return version, apperr.Store(fmt.Errorf("database is at dirty version %d, needs manual repair", version))
	}
	return version, nil
}

// MigrateToLatest steps the database forward one version at a time until
// it reaches the newest embedded migration, recording each transition in
// schema_migration_log.
func (r *Runner) MigrateToLatest() error {
	for {
		before, _, err := r.currentVersionRaw()
		if err != nil {
			return err
		}
		if err := r.m.Steps(1); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return r.migrationFailure(err, before, 1)
		}
		after, _, err := r.currentVersionRaw()
		if err != nil {
			return err
		}
		if err := r.logApplied(after); err != nil {
			return err
		}
	}
}

// MigrateTo steps the database to exactly target, forward or backward,
// recording or removing schema_migration_log rows as it goes. A downgrade
// that needs a down migration the embedded set doesn't provide fails with
// a Store error, per spec.md §4.2's missing-down-migration case.
func (r *Runner) MigrateTo(target uint32) error {
	for {
		current, _, err := r.currentVersionRaw()
		if err != nil {
			return err
		}
		if current == target {
			return nil
		}

		step := 1
		if current > target {
			step = -1
		}

		if err := r.m.Steps(step); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return r.migrationFailure(err, current, step)
		}

		after, _, err := r.currentVersionRaw()
		if err != nil {
			return err
		}

		if step > 0 {
			if err := r.logApplied(after); err != nil {
				return err
			}
		} else {
			if err := r.logRemoved(current); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) migrationFailure(err error, fromVersion uint32, step int) error {
	direction := "up"
	if step < 0 {
		direction = "down"
	}
	return apperr.Store(fmt.Errorf("migration step %s from version %d failed: %w", direction, fromVersion, err))
}

func (r *Runner) currentVersionRaw() (uint32, bool, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Store(fmt.Errorf("reading migration version: %w", err))
	}
	return version, dirty, nil
}

func (r *Runner) logApplied(version uint32) error {
	desc := migrationDescriptions[uint(version)]
	const stmt = `INSERT OR REPLACE INTO schema_migration_log (version, description, applied_at) VALUES (?, ?, ?)`
	if _, err := r.db.Exec(stmt, version, desc, time.Now().UTC()); err != nil {
		return apperr.Store(fmt.Errorf("recording applied migration %d: %w", version, err))
	}
	return nil
}

func (r *Runner) logRemoved(version uint32) error {
	const stmt = `DELETE FROM schema_migration_log WHERE version = ?`
	if _, err := r.db.Exec(stmt, version); err != nil {
		return apperr.Store(fmt.Errorf("removing migration log entry %d: %w", version, err))
	}
	return nil
}

// Close releases the underlying migration source and database driver
// handles without closing the *sql.DB itself (the Pool owns that).
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	if srcErr != nil {
		return apperr.Store(fmt.Errorf("closing migration source: %w", srcErr))
	}
	if dbErr != nil {
		return apperr.Store(fmt.Errorf("closing migration driver: %w", dbErr))
	}
	return nil
}
