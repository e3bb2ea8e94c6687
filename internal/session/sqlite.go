package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at
		ON sessions(expires_at);
`

// SQLiteStore keeps sessions in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	ttl   time.Duration
	clock clockwork.Clock
}

// OpenSQLiteStore opens the database at path, creating parent directories and
// the schema as needed. A nil clock uses real time.
func OpenSQLiteStore(path string, ttl time.Duration, clock clockwork.Clock) (*SQLiteStore, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating session database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session schema: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl, clock: clock}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sessions WHERE id = ? AND key = ? AND expires_at > ?`,
		id, key, s.clock.Now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session value: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, id, key string, value []byte) error {
	expires := s.clock.Now().Add(s.ttl).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		id, key, value, expires,
	); err != nil {
		return fmt.Errorf("set session value: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id = ?`, expires, id,
	); err != nil {
		return fmt.Errorf("refresh session expiry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session write: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep deletes expired rows and reports how many distinct sessions went away.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now().UnixMilli()

	var sessions int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT id) FROM sessions WHERE expires_at <= ?`, now,
	).Scan(&sessions); err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}
	if sessions == 0 {
		return 0, nil
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now); err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLiteStore) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("session database unreachable: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
