package http

import (
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// SessionResponse is a ledger entry in API responses.
type SessionResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Remote   string  `json:"remote,omitempty"`
	JoinedAt string  `json:"joined_at"`
	LeftAt   *string `json:"left_at,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Say      int     `json:"say"`
	Kick     int     `json:"kick"`
	List     int     `json:"list"`
}

func sessionToResponse(rec store.SessionRecord) SessionResponse {
	resp := SessionResponse{
		ID:       rec.ID,
		Name:     rec.Name,
		Remote:   rec.Remote,
		JoinedAt: rec.JoinedAt.UTC().Format(time.RFC3339),
		Say:      rec.Say,
		Kick:     rec.Kick,
		List:     rec.List,
	}
	if rec.LeftAt != nil {
		left := rec.LeftAt.UTC().Format(time.RFC3339)
		resp.LeftAt = &left
	}
	if rec.Reason != nil {
		resp.Reason = string(*rec.Reason)
	}
	return resp
}

func sessionsToResponse(records []store.SessionRecord) []SessionResponse {
	out := make([]SessionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, sessionToResponse(rec))
	}
	return out
}
