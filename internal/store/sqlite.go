package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/techassist/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex // serializes session writes to avoid SQLITE_BUSY
	logger *slog.Logger
}

// NewSQLite creates a new SQLite-backed session store.
func NewSQLite(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS session_entries (
		profile_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (profile_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_session_entries_updated ON session_entries(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Save writes all session entries for a profile in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, profileID string, rec *Record) error {
	if rec.IsEmpty() {
		return nil
	}
	entries, err := encodeEntries(rec)
	if err != nil {
		return err
	}

	return shared.RetryOnSQLiteConflict(ctx, "save session", func() error {
		return s.saveOnce(ctx, profileID, entries)
	})
}

func (s *SQLiteStore) saveOnce(ctx context.Context, profileID string, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns sql.ErrTxDone.
		_ = tx.Rollback()
	}()

	query := `
	INSERT INTO session_entries (profile_id, name, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(profile_id, name) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	now := time.Now().Unix()
	for _, name := range []string{EntryCurrentTicket, EntryChatHistory, EntryContext} {
		if _, err := tx.ExecContext(ctx, query, profileID, name, entries[name], now); err != nil {
			return fmt.Errorf("upsert session entry %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Load reads the session entries for a profile.
func (s *SQLiteStore) Load(ctx context.Context, profileID string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM session_entries WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query session entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close session entry rows", "error", closeErr)
		}
	}()

	entries := make(map[string]string, 3)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan session entry: %w", err)
		}
		entries[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session entries: %w", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}
	rec, ok := decodeEntries(entries)
	if !ok {
		s.logger.Warn("Discarding malformed stored session", "profile_id", profileID)
		return nil, nil
	}
	return rec, nil
}

// Clear removes every entry for a profile.
func (s *SQLiteStore) Clear(ctx context.Context, profileID string) error {
	return shared.RetryOnSQLiteConflict(ctx, "clear session", func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, err := s.db.ExecContext(ctx, `DELETE FROM session_entries WHERE profile_id = ?`, profileID); err != nil {
			return fmt.Errorf("delete session entries: %w", err)
		}
		return nil
	})
}
