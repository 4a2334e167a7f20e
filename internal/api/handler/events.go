package handler

import (
	"net/http"

	"github.com/mcoot/hotpotato/internal/sse"
)

// EventsHandler streams room notifications to spectators
type EventsHandler struct {
	watcher sse.Watcher
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(watcher sse.Watcher) *EventsHandler {
	return &EventsHandler{watcher: watcher}
}

// Stream handles GET /api/v1/rooms/{code}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	code, err := roomCode(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := sse.Serve(w, r, h.watcher, code); err != nil {
		WriteError(w, err)
	}
}
