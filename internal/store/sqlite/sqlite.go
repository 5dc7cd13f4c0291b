package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	remote     TEXT NOT NULL DEFAULT '',
	joined_at  DATETIME NOT NULL,
	left_at    DATETIME,
	reason     TEXT,
	say_count  INTEGER NOT NULL DEFAULT 0,
	kick_count INTEGER NOT NULL DEFAULT 0,
	list_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_joined_at ON sessions (joined_at);
`

// ErrSessionNotFound is returned when a leave is recorded for an unknown id.
var ErrSessionNotFound = errors.New("session not found")

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the database and runs setup instead of the built-in schema.
// Useful for tests that need a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordJoin inserts a ledger row for a newly named session.
func (s *SQLiteStore) RecordJoin(ctx context.Context, rec store.SessionRecord) error {
	query := `
		INSERT INTO sessions (id, name, remote, joined_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Name, rec.Remote, rec.JoinedAt.UTC()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordLeave stamps the departure time, reason and final counters.
func (s *SQLiteStore) RecordLeave(ctx context.Context, id string, reason store.LeaveReason, counts store.SessionCounts, at time.Time) error {
	query := `
		UPDATE sessions
		SET left_at = ?, reason = ?, say_count = ?, kick_count = ?, list_count = ?
		WHERE id = ? AND left_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), string(reason), counts.Say, counts.Kick, counts.List, id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record leave %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

// RecentSessions returns the newest ledger rows first.
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, name, remote, joined_at, left_at, reason, say_count, kick_count, list_count
		FROM sessions
		ORDER BY joined_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []store.SessionRecord
	for rows.Next() {
		var (
			rec    store.SessionRecord
			leftAt sql.NullTime
			reason sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Remote,
			&rec.JoinedAt,
			&leftAt,
			&reason,
			&rec.Say,
			&rec.Kick,
			&rec.List,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if leftAt.Valid {
			t := leftAt.Time
			rec.LeftAt = &t
		}
		if reason.Valid {
			r := store.LeaveReason(reason.String)
			rec.Reason = &r
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return records, nil
}
