package model

import "time"

const (
	// MinPlayers is the smallest room that can start a round
	MinPlayers = 2
	// MaxPlayers is the fixed room capacity
	MaxPlayers = 4

	// MinNameLength and MaxNameLength bound display names (inclusive)
	MinNameLength = 2
	MaxNameLength = 17
)

// RoomCode identifies a room and doubles as its display name
type RoomCode string

// Phase represents the current state of a room
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown" // only produced when a pre-round countdown is configured
	PhasePlaying   Phase = "playing"
	PhaseEnded     Phase = "ended"
)

// Room is the aggregate holding all game state for one session
type Room struct {
	Code           RoomCode
	Players        []Player // join order
	Phase          Phase
	HostID         PlayerID
	PotatoHolderID *PlayerID
	EndTime        *time.Time // round deadline, set only while playing

	// Pre-round countdown state, set only in the countdown phase
	CountdownEndsAt *time.Time
	PendingDuration time.Duration

	MaxPlayers int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRoom creates an empty lobby with the given code
func NewRoom(code RoomCode, now time.Time) *Room {
	return &Room{
		Code:       code,
		Players:    []Player{},
		Phase:      PhaseLobby,
		MaxPlayers: MaxPlayers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// GetPlayer returns the player with the given ID, or nil if not found
func (r *Room) GetPlayer(id PlayerID) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// GetHost returns the current host, or nil if the room is empty
func (r *Room) GetHost() *Player {
	return r.GetPlayer(r.HostID)
}

// HasName reports whether a current member uses exactly this name
func (r *Room) HasName(name string) bool {
	for _, p := range r.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// IsFull reports whether the room is at capacity
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// IsEmpty reports whether the room has no players left
func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// IsHolder reports whether the given player currently holds the potato
func (r *Room) IsHolder(id PlayerID) bool {
	return r.PotatoHolderID != nil && *r.PotatoHolderID == id
}

// Holder returns the current potato holder, or nil if there is none
func (r *Room) Holder() *Player {
	if r.PotatoHolderID == nil {
		return nil
	}
	return r.GetPlayer(*r.PotatoHolderID)
}

// AllGuestsReady reports whether every non-host player has readied up
func (r *Room) AllGuestsReady() bool {
	for _, p := range r.Players {
		if p.ID != r.HostID && !p.IsReady {
			return false
		}
	}
	return true
}

// NextSlot returns the lowest potato slot not used by any current player.
// Falls back to 0 only if capacity was exceeded upstream.
func (r *Room) NextSlot() int {
	used := make(map[int]bool, len(r.Players))
	for _, p := range r.Players {
		used[p.PotatoSlot] = true
	}
	for i := 0; i < r.MaxPlayers; i++ {
		if !used[i] {
			return i
		}
	}
	return 0
}

// RemovePlayer removes a player and, if they were host, hands authority to
// the next remaining player in list order. It returns the removed player and
// the new host (nil when no transfer happened).
func (r *Room) RemovePlayer(id PlayerID) (removed *Player, newHost *Player) {
	idx := -1
	for i := range r.Players {
		if r.Players[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	p := r.Players[idx]
	removed = &p
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	if r.HostID == id {
		r.HostID = ""
		if len(r.Players) > 0 {
			r.Players[0].IsHost = true
			r.HostID = r.Players[0].ID
			newHost = &r.Players[0]
		}
	}
	return removed, newHost
}

// ResetToLobby clears round state and returns the room to the lobby
func (r *Room) ResetToLobby() {
	r.Phase = PhaseLobby
	r.PotatoHolderID = nil
	r.EndTime = nil
	r.CountdownEndsAt = nil
	r.PendingDuration = 0
}

// ClearReadiness marks every player as not ready
func (r *Room) ClearReadiness() {
	for i := range r.Players {
		r.Players[i].IsReady = false
	}
}

// Clone returns a deep copy safe to hand to other goroutines
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]Player, len(r.Players))
	copy(c.Players, r.Players)
	if r.PotatoHolderID != nil {
		id := *r.PotatoHolderID
		c.PotatoHolderID = &id
	}
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	if r.CountdownEndsAt != nil {
		t := *r.CountdownEndsAt
		c.CountdownEndsAt = &t
	}
	return &c
}
