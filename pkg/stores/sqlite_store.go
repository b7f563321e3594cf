// Package stores persists finished invocations so the audit trail
// outlives the process. The in-memory history keeps the recent window;
// this store keeps everything.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/hostwright/hostwright/pkg/history"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore records invocations in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a store instance; call Init before use.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &SQLiteStore{path: cfg.Path, cfg: cfg}, nil
}

// Init opens the database in WAL mode and runs migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveInvocation appends one finished invocation. Records are never
// updated or deleted through this store.
func (s *SQLiteStore) SaveInvocation(ctx context.Context, e history.Entry) error {
	query := `
		INSERT INTO invocations (
			id, target, task, category, command, privileged,
			status, exit_code, attempts, stdout, stderr, error,
			started_at, duration_ms
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID.String(),
		e.Target,
		e.Task,
		e.Category,
		e.Command,
		e.Privileged,
		e.Status,
		e.ExitCode,
		e.Attempts,
		e.Stdout,
		e.Stderr,
		e.Error,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save invocation: %w", err)
	}
	return nil
}

// ListInvocations returns up to limit records for one target, newest
// first. An empty target selects all targets.
func (s *SQLiteStore) ListInvocations(ctx context.Context, target string, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, target, task, category, command, privileged,
		       status, exit_code, attempts, stdout, stderr, error,
		       started_at, duration_ms
		FROM invocations
		WHERE (? = '' OR target = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, target, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []history.Entry
	for rows.Next() {
		var (
			e          history.Entry
			id         string
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(
			&id, &e.Target, &e.Task, &e.Category, &e.Command, &e.Privileged,
			&e.Status, &e.ExitCode, &e.Attempts, &e.Stdout, &e.Stderr, &e.Error,
			&startedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		if e.ID, err = parseUUID(id); err != nil {
			return nil, err
		}
		if e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at %q: %w", startedAt, err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse invocation id %q: %w", s, err)
	}
	return id, nil
}

// CountByStatus returns how many stored invocations ended in each
// status, for the operator summary view.
func (s *SQLiteStore) CountByStatus(ctx context.Context, target string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM invocations
		WHERE (? = '' OR target = ?)
		GROUP BY status
	`
	rows, err := s.db.QueryContext(ctx, query, target, target)
	if err != nil {
		return nil, fmt.Errorf("failed to count invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
