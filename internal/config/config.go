// Package config holds server settings and binds them to flags and
// HOTPOTATO_* environment variables
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/hotpotato/internal/services/room"
	"github.com/mcoot/hotpotato/internal/session"
	redisstorage "github.com/mcoot/hotpotato/internal/storage/redis"
)

// EnvPrefix prefixes every environment variable the server reads
const EnvPrefix = "HOTPOTATO"

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	LogLevel        string
	ShutdownTimeout time.Duration

	Storage       string
	RedisURL      string
	RedisPoolSize int
	RoomTTL       time.Duration

	RoundMin      time.Duration
	RoundMax      time.Duration
	Countdown     time.Duration
	RequireReady  bool
	GracePeriod   time.Duration
	SweepInterval time.Duration

	PublicBaseURL  string
	AllowedOrigins []string
}

// Default returns the standard server configuration
func Default() Config {
	opts := room.DefaultOptions()
	sess := session.DefaultConfig()
	redisCfg := redisstorage.DefaultConfig()

	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
		Storage:         StorageMemory,
		RedisURL:        redisCfg.URL,
		RedisPoolSize:   redisCfg.PoolSize,
		RoomTTL:         redisCfg.RoomTTL,
		RoundMin:        opts.RoundMin,
		RoundMax:        opts.RoundMax,
		Countdown:       opts.Countdown,
		RequireReady:    opts.RequireReady,
		GracePeriod:     sess.GracePeriod,
		SweepInterval:   sess.SweepInterval,
	}
}

// RegisterFlags adds a flag for every setting, defaulting to c's values
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Host, "bind", "b", c.Host, "address to bind to (env: HOTPOTATO_BIND)")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on (env: HOTPOTATO_PORT)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error (env: HOTPOTATO_LOG_LEVEL)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "time allowed for graceful shutdown (env: HOTPOTATO_SHUTDOWN_TIMEOUT)")

	fs.StringVar(&c.Storage, "storage", c.Storage, "room store backend: memory or redis (env: HOTPOTATO_STORAGE)")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "redis connection URL (env: HOTPOTATO_REDIS_URL)")
	fs.IntVar(&c.RedisPoolSize, "redis-pool-size", c.RedisPoolSize, "redis connection pool size (env: HOTPOTATO_REDIS_POOL_SIZE)")
	fs.DurationVar(&c.RoomTTL, "room-ttl", c.RoomTTL, "expiry of idle rooms in redis (env: HOTPOTATO_ROOM_TTL)")

	fs.DurationVar(&c.RoundMin, "round-min", c.RoundMin, "shortest possible round (env: HOTPOTATO_ROUND_MIN)")
	fs.DurationVar(&c.RoundMax, "round-max", c.RoundMax, "longest possible round (env: HOTPOTATO_ROUND_MAX)")
	fs.DurationVar(&c.Countdown, "countdown", c.Countdown, "pre-round countdown, 0 to disable (env: HOTPOTATO_COUNTDOWN)")
	fs.BoolVar(&c.RequireReady, "require-ready", c.RequireReady, "require every guest to be ready before a round (env: HOTPOTATO_REQUIRE_READY)")
	fs.DurationVar(&c.GracePeriod, "grace-period", c.GracePeriod, "how long a dropped player stays listed (env: HOTPOTATO_GRACE_PERIOD)")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "how often round timers are checked (env: HOTPOTATO_SWEEP_INTERVAL)")

	fs.StringVar(&c.PublicBaseURL, "public-url", c.PublicBaseURL, "base URL used in join links, derived from requests if empty (env: HOTPOTATO_PUBLIC_URL)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "browser origins allowed to connect, any if empty (env: HOTPOTATO_ALLOWED_ORIGINS)")
}

// BindEnv applies HOTPOTATO_* environment variables to every flag not set
// on the command line
func BindEnv(fs *pflag.FlagSet) error {
	return BindEnvPrefix(fs, EnvPrefix)
}

// BindEnvPrefix applies PREFIX_FLAG_NAME environment variables to every flag
// not set on the command line. Errors name the offending variable.
func BindEnvPrefix(fs *pflag.FlagSet, prefix string) error {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w",
					prefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// LoadDotEnv loads variables from files into the environment without
// overriding ones already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("--redis-url is required when --storage=redis")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("invalid redis pool size: %d", c.RedisPoolSize)
		}
	default:
		return fmt.Errorf("invalid storage backend %q: must be %q or %q", c.Storage, StorageMemory, StorageRedis)
	}

	if c.RoundMin <= 0 {
		return fmt.Errorf("round minimum must be positive: %s", c.RoundMin)
	}
	if c.RoundMax < c.RoundMin {
		return fmt.Errorf("round maximum %s is shorter than minimum %s", c.RoundMax, c.RoundMin)
	}
	if c.Countdown < 0 {
		return fmt.Errorf("countdown cannot be negative: %s", c.Countdown)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace period cannot be negative: %s", c.GracePeriod)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive: %s", c.SweepInterval)
	}

	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public URL: %q", c.PublicBaseURL)
		}
	}
	return nil
}

// ParseLevel converts a --log-level value
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RoomOptions returns the round pacing settings
func (c *Config) RoomOptions() room.Options {
	return room.Options{
		RoundMin:     c.RoundMin,
		RoundMax:     c.RoundMax,
		Countdown:    c.Countdown,
		RequireReady: c.RequireReady,
	}
}

// SessionConfig returns the session engine timing
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		GracePeriod:   c.GracePeriod,
		SweepInterval: c.SweepInterval,
	}
}

// RedisConfig returns the redis store settings
func (c *Config) RedisConfig() redisstorage.Config {
	cfg := redisstorage.DefaultConfig()
	cfg.URL = c.RedisURL
	cfg.PoolSize = c.RedisPoolSize
	cfg.RoomTTL = c.RoomTTL
	return cfg
}
