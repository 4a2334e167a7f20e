package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player represents a participant seated in a room
type Player struct {
	ID         PlayerID
	Name       string
	Connected  bool // false while a disconnect grace period is running
	IsHost     bool
	IsReady    bool // only meaningful in the lobby, ignored for the host
	PotatoSlot int  // stable visual slot in [0, MaxPlayers)
	JoinedAt   time.Time
}
