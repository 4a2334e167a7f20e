package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/hotpotato/internal/api/response"
)

// Pinger checks that a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness of the session engine
type HealthHandler struct {
	rooms RoomReader
	store Pinger
}

// NewHealthHandler creates a new health handler. store may be nil when the
// backend has nothing to check.
func NewHealthHandler(rooms RoomReader, store Pinger) *HealthHandler {
	return &HealthHandler{rooms: rooms, store: store}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rooms.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	status, code := "ok", http.StatusOK
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	response.JSON(w, code, response.Health{
		Status:        status,
		Connections:   stats.Connections,
		Players:       stats.Bound,
		PendingGraces: stats.PendingGraces,
		Watchers:      stats.Watchers,
	})
}
