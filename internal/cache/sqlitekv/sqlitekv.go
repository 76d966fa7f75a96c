// Package sqlitekv is the default host-storage backend for internal/cache:
// a single-writer SQLite key-value table, grounded on the teacher's
// BaselineManager (internal/sync/baseline.go) — same WAL pragma set, same
// sole-writer SetMaxOpenConns(1), same goose-embedded migration flow.
package sqlitekv

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqlGet    = `SELECT value FROM kv WHERE key = ?`
	sqlUpsert = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// Store is a single-writer SQLite-backed key-value store.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if necessary) the SQLite database at dbPath, runs
// pending migrations, and returns a ready-to-use Store.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)&_pragma=journal_size_limit(67108864)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("kv store initialized", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Get returns the value stored under key, and whether it was found.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.db.QueryRowContext(ctx, sqlGet, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("sqlitekv: getting key %q: %w", key, err)
	}

	return value, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, sqlUpsert, key, value, s.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlitekv: setting key %q: %w", key, err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
