package room

import "time"

// Options tunes round pacing and start rules
type Options struct {
	// RoundMin and RoundMax bound the uniformly drawn round duration
	RoundMin time.Duration
	RoundMax time.Duration

	// Countdown, when positive, inserts a countdown phase before each round
	Countdown time.Duration

	// RequireReady makes StartRound fail until every guest is ready
	RequireReady bool
}

// DefaultOptions returns the standard pacing: 10-30 s rounds, no countdown,
// host decides when to start
func DefaultOptions() Options {
	return Options{
		RoundMin: 10 * time.Second,
		RoundMax: 30 * time.Second,
	}
}
