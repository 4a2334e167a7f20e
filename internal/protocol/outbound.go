package protocol

import (
	"encoding/json"
	"fmt"
)

// Server -> client notifications
const (
	TypeJoinSuccess     Type = "JOIN_SUCCESS"
	TypeLeaveSuccess    Type = "LEAVE_SUCCESS"
	TypeRoomUpdate      Type = "ROOM_UPDATE"
	TypeGameStarted     Type = "GAME_STARTED"
	TypeGamePreparing   Type = "GAME_PREPARING"
	TypeGameLive        Type = "GAME_LIVE"
	TypePotatoPassed    Type = "POTATO_PASSED"
	TypeGameEnded       Type = "GAME_ENDED"
	TypeReturnToLobby   Type = "RETURN_TO_LOBBY"
	TypeHostTransferred Type = "HOST_TRANSFERRED"
	TypeError           Type = "ERROR"
)

// Error codes carried by ERROR frames
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeRoomFull         = "ROOM_FULL"
	CodeInvalidPhase     = "INVALID_PHASE"
	CodeNotHost          = "NOT_HOST"
	CodeNotPotatoHolder  = "NOT_POTATO_HOLDER"
	CodeInvalidTarget    = "INVALID_TARGET"
	CodeDuplicateName    = "DUPLICATE_NAME"
	CodeNotEnoughPlayers = "NOT_ENOUGH_PLAYERS"
	CodeNotReady         = "NOT_READY"
	CodeMalformed        = "MALFORMED_MESSAGE"
	CodeInternal         = "INTERNAL_ERROR"
)

// Message is one outbound notification
type Message interface {
	MessageType() Type
}

// JoinSuccess privately confirms a join
type JoinSuccess struct {
	Type     Type         `json:"type"`
	PlayerID string       `json:"playerId"`
	Room     RoomSnapshot `json:"room"`
}

// LeaveSuccess privately confirms a leave
type LeaveSuccess struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// RoomEvent is a room-wide snapshot with a human-readable message.
// Used for ROOM_UPDATE, GAME_STARTED, GAME_LIVE, POTATO_PASSED,
// RETURN_TO_LOBBY and GAME_ROOM.
type RoomEvent struct {
	Type    Type         `json:"type"`
	Room    RoomSnapshot `json:"room"`
	Message string       `json:"message,omitempty"`
}

// GamePreparing announces a pre-round countdown
type GamePreparing struct {
	Type            Type         `json:"type"`
	Room            RoomSnapshot `json:"room"`
	CountdownEndsAt int64        `json:"countdownEndsAt"`
	Message         string       `json:"message"`
}

// GameEnded reports the round result
type GameEnded struct {
	Type    Type            `json:"type"`
	Room    RoomSnapshot    `json:"room"`
	Loser   *PlayerSnapshot `json:"loser"`
	Message string          `json:"message"`
}

// HostTransferred reports a host migration after a disconnect
type HostTransferred struct {
	Type      Type         `json:"type"`
	NewHostID string       `json:"newHostId"`
	Room      RoomSnapshot `json:"room"`
	Message   string       `json:"message"`
}

// Error is sent privately to the connection whose intent failed
type Error struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (m JoinSuccess) MessageType() Type     { return m.Type }
func (m LeaveSuccess) MessageType() Type    { return m.Type }
func (m RoomEvent) MessageType() Type       { return m.Type }
func (m GamePreparing) MessageType() Type   { return m.Type }
func (m GameEnded) MessageType() Type       { return m.Type }
func (m HostTransferred) MessageType() Type { return m.Type }
func (m Error) MessageType() Type           { return m.Type }

// NewRoomEvent builds a room-wide event of the given type
func NewRoomEvent(t Type, room RoomSnapshot, message string) RoomEvent {
	return RoomEvent{Type: t, Room: room, Message: message}
}

// NewError builds an ERROR frame
func NewError(code, message string) Error {
	return Error{Type: TypeError, Code: code, Message: message}
}

// Frame is the union of every outbound field, for clients decoding server frames
type Frame struct {
	Type            Type            `json:"type"`
	PlayerID        string          `json:"playerId,omitempty"`
	Room            *RoomSnapshot   `json:"room,omitempty"`
	Message         string          `json:"message,omitempty"`
	Code            string          `json:"code,omitempty"`
	Loser           *PlayerSnapshot `json:"loser,omitempty"`
	NewHostID       string          `json:"newHostId,omitempty"`
	CountdownEndsAt int64           `json:"countdownEndsAt,omitempty"`
}

// DecodeFrame parses one server frame
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return f, nil
}
