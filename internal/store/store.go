package store

import (
	"context"
	"time"
)

// LeaveReason describes how a session ended.
type LeaveReason string

const (
	LeaveReasonLeave      LeaveReason = "leave"
	LeaveReasonKicked     LeaveReason = "kicked"
	LeaveReasonDisconnect LeaveReason = "disconnect"
)

// SessionRecord is one entry of the session ledger. It records who was
// connected and for how long, never what they said.
type SessionRecord struct {
	ID       string
	Name     string
	Remote   string
	JoinedAt time.Time
	LeftAt   *time.Time
	Reason   *LeaveReason
	Say      int
	Kick     int
	List     int
}

// SessionCounts is the per-session command tally stored on leave.
type SessionCounts struct {
	Say  int
	Kick int
	List int
}

// SessionStore is the persistence contract for the session ledger.
type SessionStore interface {
	// RecordJoin stores a newly named session.
	RecordJoin(ctx context.Context, rec SessionRecord) error
	// RecordLeave closes the ledger entry for id.
	RecordLeave(ctx context.Context, id string, reason LeaveReason, counts SessionCounts, at time.Time) error
	// RecentSessions returns up to limit entries, newest first.
	RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error)
}

// Store aggregates all persistence needs.
type Store interface {
	SessionStore
	Close() error
}

// Nop is a Store that keeps nothing. It is used when no database is configured.
type Nop struct{}

func (Nop) RecordJoin(context.Context, SessionRecord) error { return nil }

func (Nop) RecordLeave(context.Context, string, LeaveReason, SessionCounts, time.Time) error {
	return nil
}

func (Nop) RecentSessions(context.Context, int) ([]SessionRecord, error) { return nil, nil }

func (Nop) Close() error { return nil }
