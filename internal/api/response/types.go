package response

import (
	"github.com/mcoot/hotpotato/internal/protocol"
)

// Health is the response for the health endpoint
type Health struct {
	Status        string `json:"status"`
	Connections   int    `json:"connections"`
	Players       int    `json:"players"`
	PendingGraces int    `json:"pending_graces"`
	Watchers      int    `json:"watchers"`
}

// RoomSummary is a short view of one room for listings
type RoomSummary struct {
	Code       string `json:"code"`
	Phase      string `json:"phase"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Host       string `json:"host,omitempty"`
}

// RoomSummaryFromSnapshot converts a protocol.RoomSnapshot
func RoomSummaryFromSnapshot(s protocol.RoomSnapshot) RoomSummary {
	summary := RoomSummary{
		Code:       s.RoomID,
		Phase:      s.Phase,
		Players:    len(s.Players),
		MaxPlayers: s.MaxPlayers,
	}
	if host := s.Player(s.HostID); host != nil {
		summary.Host = host.Name
	}
	return summary
}

// RoomList is the response for the room listing endpoint
type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

// Room is the response for a single room: the same snapshot clients receive
// over the websocket, plus its join link
type Room struct {
	protocol.RoomSnapshot
	JoinURL string `json:"join_url"`
}

// RoomCode is a suggested code for a new room
type RoomCode struct {
	Code    string `json:"code"`
	JoinURL string `json:"join_url"`
}
