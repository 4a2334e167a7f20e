package factory

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/hotpotato/internal/api"
	"github.com/mcoot/hotpotato/internal/api/handler"
	"github.com/mcoot/hotpotato/internal/dependencies/clock"
	"github.com/mcoot/hotpotato/internal/dependencies/identity"
	"github.com/mcoot/hotpotato/internal/dependencies/random"
	"github.com/mcoot/hotpotato/internal/registry"
	"github.com/mcoot/hotpotato/internal/services/room"
	"github.com/mcoot/hotpotato/internal/session"
	"github.com/mcoot/hotpotato/internal/storage"
	"github.com/mcoot/hotpotato/internal/storage/memory"
	redisstorage "github.com/mcoot/hotpotato/internal/storage/redis"
	"github.com/mcoot/hotpotato/internal/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock    clock.Clock
	Random   random.Random
	Identity identity.Generator

	// Services
	Registry       *registry.Registry
	RoomController *room.Controller
	Engine         *session.Engine
	WebSocket      *ws.Handler

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// RoomOptions tunes round pacing (optional)
	// If zero value, defaults to room.DefaultOptions()
	RoomOptions room.Options
	// SessionConfig holds grace and sweep timing (optional)
	// If zero value, defaults to session.DefaultConfig()
	SessionConfig session.Config
	// WebSocketConfig holds transport settings (optional)
	// If zero value, defaults to ws.DefaultConfig()
	WebSocketConfig ws.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()
	ids := identity.New()

	return newWithDependencies(store, clk, rnd, ids, withDefaults(cfg), logger), nil
}

func withDefaults(cfg Config) Config {
	if cfg.RoomOptions.RoundMax == 0 {
		cfg.RoomOptions = room.DefaultOptions()
	}
	if cfg.SessionConfig.SweepInterval == 0 {
		cfg.SessionConfig = session.DefaultConfig()
	}
	if cfg.WebSocketConfig.SendBufferSize == 0 {
		cfg.WebSocketConfig = ws.DefaultConfig()
	}
	return cfg
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, ids identity.Generator, cfg Config, logger *slog.Logger) *App {
	reg := registry.New()
	roomController := room.NewController(store, clk, rnd, ids, cfg.RoomOptions, logger)
	engine := session.NewEngine(roomController, reg, clk, cfg.SessionConfig, logger)
	wsHandler := ws.NewHandler(engine, cfg.WebSocketConfig, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Identity:       ids,
		Registry:       reg,
		RoomController: roomController,
		Engine:         engine,
		WebSocket:      wsHandler,
		logger:         logger,
	}
}

// Router builds the HTTP handler serving the API and websocket sessions
func (a *App) Router(publicBaseURL string, allowedOrigins []string) http.Handler {
	var pinger handler.Pinger
	if p, ok := a.Storage.(handler.Pinger); ok {
		pinger = p
	}
	return api.NewRouter(api.RouterConfig{
		Logger:         a.logger,
		Rooms:          a.Engine,
		Store:          pinger,
		Events:         a.Engine,
		WebSocket:      a.WebSocket,
		PublicBaseURL:  publicBaseURL,
		AllowedOrigins: allowedOrigins,
	})
}

// Close releases storage connections. Stop the engine first.
func (a *App) Close() error {
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
