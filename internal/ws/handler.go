package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/hotpotato/internal/registry"
	"github.com/mcoot/hotpotato/internal/session"
)

// Engine is the part of the session engine the transport drives
type Engine interface {
	Connect(ctx context.Context, sink session.Sink) (registry.ConnID, error)
	HandleFrame(ctx context.Context, conn registry.ConnID, data []byte) error
	Disconnect(ctx context.Context, conn registry.ConnID) error
}

// Config holds websocket transport settings
type Config struct {
	// SendBufferSize bounds queued outbound messages per connection;
	// a connection that falls this far behind is closed
	SendBufferSize int

	// MaxMessageSize bounds inbound frames in bytes
	MaxMessageSize int64

	// PongWait is how long a silent peer is kept; pings go out at 90% of it
	PongWait time.Duration

	// AllowedOrigins restricts browser origins; empty allows any
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the websocket transport
func DefaultConfig() Config {
	return Config{
		SendBufferSize: 64,
		MaxMessageSize: 4096,
		PongWait:       60 * time.Second,
	}
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Handler upgrades HTTP requests to websocket sessions
type Handler struct {
	engine   Engine
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(engine Engine, cfg Config, logger *slog.Logger) *Handler {
	h := &Handler{
		engine: engine,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP runs one connection for its whole lifetime
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}

	client := newClient(conn, h.cfg, h.logger)
	id, err := h.engine.Connect(r.Context(), client)
	if err != nil {
		h.logger.Warn("session engine refused connection", slog.Any("error", err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	client.id = id
	client.logger = h.logger.With(slog.String("conn", string(id)))

	client.logger.Info("websocket connected", slog.String("remote_addr", r.RemoteAddr))
	connectedAt := time.Now()

	go client.writePump()
	client.readPump(h.engine)

	client.logger.Info("websocket disconnected",
		slog.Duration("connection_duration", time.Since(connectedAt)))
}
