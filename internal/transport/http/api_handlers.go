package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const defaultSessionsLimit = 50

// APIHandlers serves the read-only admin endpoints.
type APIHandlers struct {
	registry *core.Registry
	store    store.SessionStore
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(registry *core.Registry, st store.SessionStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		registry: registry,
		store:    st,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// SessionsQuery holds the query parameters of GET /sessions.
type SessionsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// Health reports liveness and the number of named sessions.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Sessions: h.registry.Len()})
}

// Stats returns the same counters the diagnostics report prints.
// GET /stats
func (h *APIHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Stats())
}

// Names returns the sorted roster.
// GET /names
func (h *APIHandlers) Names(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"names": h.registry.Names()})
}

// Sessions lists recent ledger entries, newest first.
// GET /sessions?limit=n
func (h *APIHandlers) Sessions(c *gin.Context) {
	var q SessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.log.Debug().Err(err).Msg("invalid sessions query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultSessionsLimit
	}

	records, err := h.store.RecentSessions(c.Request.Context(), q.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessionsToResponse(records)})
}
