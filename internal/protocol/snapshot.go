package protocol

import (
	"time"

	"github.com/mcoot/hotpotato/internal/model"
)

// PlayerSnapshot is a player as clients see it
type PlayerSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Connected   bool   `json:"connected"`
	IsHost      bool   `json:"isHost"`
	IsReady     bool   `json:"isReady"`
	PotatoIndex int    `json:"potatoIndex"`
}

// RoomSnapshot is the full room state sent after every change.
// Times are unix milliseconds.
type RoomSnapshot struct {
	RoomID          string           `json:"roomId"`
	Players         []PlayerSnapshot `json:"players"`
	PotatoHolderID  *string          `json:"potatoHolderId"`
	Phase           string           `json:"phase"`
	EndTime         *int64           `json:"endTime"`
	CountdownEndsAt *int64           `json:"countdownEndsAt"`
	MaxPlayers      int              `json:"maxPlayers"`
	HostID          string           `json:"hostId"`
}

// PlayerFromModel converts a model.Player
func PlayerFromModel(p *model.Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:          string(p.ID),
		Name:        p.Name,
		Connected:   p.Connected,
		IsHost:      p.IsHost,
		IsReady:     p.IsReady,
		PotatoIndex: p.PotatoSlot,
	}
}

// SnapshotFromModel converts a model.Room. The result shares no memory with room.
func SnapshotFromModel(room *model.Room) RoomSnapshot {
	players := make([]PlayerSnapshot, len(room.Players))
	for i := range room.Players {
		players[i] = PlayerFromModel(&room.Players[i])
	}

	snap := RoomSnapshot{
		RoomID:          string(room.Code),
		Players:         players,
		Phase:           string(room.Phase),
		EndTime:         unixMillis(room.EndTime),
		CountdownEndsAt: unixMillis(room.CountdownEndsAt),
		MaxPlayers:      room.MaxPlayers,
		HostID:          string(room.HostID),
	}
	if room.PotatoHolderID != nil {
		id := string(*room.PotatoHolderID)
		snap.PotatoHolderID = &id
	}
	return snap
}

// Player returns the snapshot of the player with the given id, or nil
func (s RoomSnapshot) Player(id string) *PlayerSnapshot {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func unixMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
