package sse

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/registry"
	"github.com/mcoot/hotpotato/internal/session"
)

const (
	// Time between keepalive comments
	keepalivePeriod = 30 * time.Second

	// Events buffered per subscriber before it is dropped
	sendBufferSize = 64
)

// Watcher attaches sinks to a room's notifications
type Watcher interface {
	Watch(ctx context.Context, code model.RoomCode, sink session.Sink) (registry.ConnID, error)
	Unwatch(ctx context.Context, id registry.ConnID) error
}

// Serve streams the room's notifications until the client goes away or the
// room is deleted. An error is returned only if the stream could not start;
// nothing has been written to w in that case.
func Serve(w http.ResponseWriter, r *http.Request, watcher Watcher, code model.RoomCode) error {
	stream := NewStream(sendBufferSize)
	id, err := watcher.Watch(r.Context(), code, stream)
	if err != nil {
		return err
	}
	defer func() {
		_ = watcher.Unwatch(context.Background(), id)
	}()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(keepalivePeriod)
	defer ticker.Stop()

	write := func(b []byte) bool {
		if _, err := w.Write(b); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	for {
		select {
		case msg := <-stream.send:
			if !write(msg) {
				return nil
			}

		case <-ticker.C:
			if !write([]byte(": keepalive\n\n")) {
				return nil
			}

		case <-stream.done:
			for {
				select {
				case msg := <-stream.send:
					if !write(msg) {
						return nil
					}
				default:
					return nil
				}
			}

		case <-r.Context().Done():
			return nil
		}
	}
}
