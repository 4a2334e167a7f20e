package session

import "time"

// Config holds session engine timing
type Config struct {
	// GracePeriod is how long a dropped player stays listed before removal
	GracePeriod time.Duration

	// SweepInterval is how often round deadlines and countdowns are checked
	SweepInterval time.Duration
}

// DefaultConfig returns the standard 5 s grace window and 100 ms sweep
func DefaultConfig() Config {
	return Config{
		GracePeriod:   5 * time.Second,
		SweepInterval: 100 * time.Millisecond,
	}
}
