package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/runger/ringq/internal/log"
)

const (
	// walCheckpointInterval is how often we checkpoint the WAL file
	// to prevent unbounded growth in long-running processes.
	walCheckpointInterval = 5 * time.Minute
)

// SQLiteStore implements Backend using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	logger    *slog.Logger
	stopCh    chan struct{} // signals background goroutines to stop
	stoppedCh chan struct{} // signals background goroutines have stopped
	closeOnce sync.Once     // ensures Close() is idempotent
	closeErr  error         // stores the error from Close()
}

// DefaultDBPath returns the default database path (~/.ringq/state.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ringq", "state.db"), nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// If the path is empty, it uses DefaultDBPath.
// The database is opened with WAL mode enabled.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	if dbPath == "" {
		var err error
		dbPath, err = DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; every buffer operation is a short statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		logger:    o.logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	go store.walCheckpointLoop()

	return store, nil
}

// Close closes the database connection.
// It is safe to call Close multiple times.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			<-s.stoppedCh
		}

		if s.db != nil {
			// Final checkpoint before closing to merge WAL into main db
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

// DB returns the underlying database connection for advanced use cases.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) walCheckpointLoop() {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				log.LogSQLiteError(s.logger, "wal_checkpoint", err)
			}
		}
	}
}

// LoadRange implements Backend.
func (s *SQLiteStore) LoadRange(ctx context.Context, buffer string) (uint64, uint64, bool, error) {
	var start, end int64
	err := s.db.QueryRowContext(ctx, `
		SELECT start_idx, end_idx FROM ring_ranges WHERE buffer = ?
	`, buffer).Scan(&start, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("failed to load range: %w", err)
	}
	return uint64(start), uint64(end), true, nil
}

// StoreRange implements Backend.
func (s *SQLiteStore) StoreRange(ctx context.Context, buffer string, start, end uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ring_ranges (buffer, start_idx, end_idx, updated_at_unix_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(buffer) DO UPDATE SET
			start_idx = excluded.start_idx,
			end_idx = excluded.end_idx,
			updated_at_unix_ms = excluded.updated_at_unix_ms
	`, buffer, int64(start), int64(end), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store range: %w", err)
	}
	return nil
}

// GetItem implements Backend.
func (s *SQLiteStore) GetItem(ctx context.Context, buffer string, idx uint64) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM ring_items WHERE buffer = ? AND idx = ?
	`, buffer, int64(idx)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get item: %w", err)
	}
	return payload, true, nil
}

// PutItem implements Backend. An existing payload at idx is replaced.
func (s *SQLiteStore) PutItem(ctx context.Context, buffer string, idx uint64, payload []byte) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ring_items (buffer, idx, payload, updated_at_unix_ms)
		VALUES (?, ?, ?, ?)
	`, buffer, int64(idx), payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// TakeItem implements Backend. The read and the delete are one statement.
func (s *SQLiteStore) TakeItem(ctx context.Context, buffer string, idx uint64) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM ring_items WHERE buffer = ? AND idx = ? RETURNING payload
	`, buffer, int64(idx)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to take item: %w", err)
	}
	return payload, true, nil
}

// CountItems implements Backend.
func (s *SQLiteStore) CountItems(ctx context.Context, buffer string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ring_items WHERE buffer = ?
	`, buffer).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// migrate runs database migrations to ensure the schema is up to date.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	currentVersion := 0
	row := s.db.QueryRowContext(ctx, `
		SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1
	`)
	if err := row.Scan(&currentVersion); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), isTableNotFoundError(err):
			currentVersion = 0
		default:
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{version: 1, sql: migrationV1},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms)
			VALUES (?, ?)
		`, m.version, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_meta`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// isTableNotFoundError checks if the error indicates a missing table.
func isTableNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}

// migrationV1 creates the initial schema.
const migrationV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at_unix_ms INTEGER NOT NULL
);

-- One (start, end) pair per buffer. Indices are stored as the two's
-- complement bit pattern of the unsigned value.
CREATE TABLE IF NOT EXISTS ring_ranges (
  buffer TEXT PRIMARY KEY,
  start_idx INTEGER NOT NULL,
  end_idx INTEGER NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);

-- Items keyed by (buffer, slot index)
CREATE TABLE IF NOT EXISTS ring_items (
  buffer TEXT NOT NULL,
  idx INTEGER NOT NULL,
  payload BLOB NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL,
  PRIMARY KEY (buffer, idx)
) WITHOUT ROWID;
`
