package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/hotpotato/internal/api/apierr"
	"github.com/mcoot/hotpotato/internal/api/handler"
	"github.com/mcoot/hotpotato/internal/middleware"
	"github.com/mcoot/hotpotato/internal/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	Rooms  handler.RoomReader

	// Store is pinged by the health check; nil skips the check
	Store handler.Pinger

	// Events streams room notifications; nil disables the route
	Events sse.Watcher

	// WebSocket serves game sessions at /ws
	WebSocket http.Handler

	// PublicBaseURL prefixes join links; empty derives it from each request
	PublicBaseURL string

	// AllowedOrigins restricts CORS; empty allows any origin
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(cfg.Rooms, cfg.PublicBaseURL)
	healthHandler := handler.NewHealthHandler(cfg.Rooms, cfg.Store)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, apierr.WritePanic)

	// Game sessions
	if cfg.WebSocket != nil {
		r.Handle("/ws", loggingMiddleware(cfg.WebSocket)).Methods(http.MethodGet)
	}

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	api.HandleFunc("/room-code", roomHandler.SuggestCode).Methods(http.MethodGet)
	api.HandleFunc("/rooms", roomHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}", roomHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{code}/qr", roomHandler.QR).Methods(http.MethodGet)
	if cfg.Events != nil {
		api.HandleFunc("/rooms/{code}/events", handler.NewEventsHandler(cfg.Events).Stream).Methods(http.MethodGet)
	}

	// Preflights are answered before route matching
	return middleware.CORS(cfg.AllowedOrigins)(r)
}
