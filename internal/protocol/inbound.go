package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/hotpotato/internal/model"
)

// Type is the required discriminator carried by every frame
type Type string

// Client -> server intents
const (
	TypeJoinRoom    Type = "JOIN_ROOM"
	TypeLeaveRoom   Type = "LEAVE_ROOM"
	TypeToggleReady Type = "TOGGLE_READY"
	TypeStartGame   Type = "START_GAME"
	TypePassPotato  Type = "PASS_POTATO"
	TypePlayAgain   Type = "PLAY_AGAIN"
	TypeGameRoom    Type = "GAME_ROOM" // also sent back to the room
)

// ErrMalformed is returned for frames that are not a known, well-formed intent
var ErrMalformed = errors.New("malformed message")

// Intent is one inbound client message. The set of implementations is closed.
type Intent interface {
	IntentType() Type
}

// JoinRoom asks to join (or create) a room
type JoinRoom struct {
	RoomCode   model.RoomCode
	PlayerName string
}

// LeaveRoom leaves the current room immediately
type LeaveRoom struct{}

// ToggleReady flips the sender's readiness
type ToggleReady struct{}

// StartGame starts a round (host only)
type StartGame struct{}

// PassPotato hands the potato to another player
type PassPotato struct {
	TargetPlayerID model.PlayerID
}

// PlayAgain chains straight into a new round after one ended (host only)
type PlayAgain struct{}

// EnterGameRoom moves every client to the game screen (host only)
type EnterGameRoom struct{}

func (JoinRoom) IntentType() Type      { return TypeJoinRoom }
func (LeaveRoom) IntentType() Type     { return TypeLeaveRoom }
func (ToggleReady) IntentType() Type   { return TypeToggleReady }
func (StartGame) IntentType() Type     { return TypeStartGame }
func (PassPotato) IntentType() Type    { return TypePassPotato }
func (PlayAgain) IntentType() Type     { return TypePlayAgain }
func (EnterGameRoom) IntentType() Type { return TypeGameRoom }

// intentFrame is the flat wire shape of every intent
type intentFrame struct {
	Type           Type   `json:"type"`
	RoomCode       string `json:"roomCode,omitempty"`
	RoomID         string `json:"roomId,omitempty"` // older clients
	PlayerName     string `json:"playerName,omitempty"`
	TargetPlayerID string `json:"targetPlayerId,omitempty"`
}

// DecodeIntent parses one inbound frame and checks the variant's required fields.
// Unparseable or unknown frames return ErrMalformed; missing fields return a
// validation GameError.
func DecodeIntent(data []byte) (Intent, error) {
	var f intentFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case TypeJoinRoom:
		code := f.RoomCode
		if code == "" {
			code = f.RoomID
		}
		if code == "" || f.PlayerName == "" {
			return nil, model.NewError(model.ErrValidation, "Room code and player name required")
		}
		return JoinRoom{RoomCode: model.RoomCode(code), PlayerName: f.PlayerName}, nil
	case TypeLeaveRoom:
		return LeaveRoom{}, nil
	case TypeToggleReady:
		return ToggleReady{}, nil
	case TypeStartGame:
		return StartGame{}, nil
	case TypePassPotato:
		if f.TargetPlayerID == "" {
			return nil, model.NewError(model.ErrValidation, "Target player required")
		}
		return PassPotato{TargetPlayerID: model.PlayerID(f.TargetPlayerID)}, nil
	case TypePlayAgain:
		return PlayAgain{}, nil
	case TypeGameRoom:
		return EnterGameRoom{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, f.Type)
	}
}

// EncodeIntent renders an intent as a wire frame
func EncodeIntent(intent Intent) ([]byte, error) {
	f := intentFrame{Type: intent.IntentType()}
	switch i := intent.(type) {
	case JoinRoom:
		f.RoomCode = string(i.RoomCode)
		f.PlayerName = i.PlayerName
	case PassPotato:
		f.TargetPlayerID = string(i.TargetPlayerID)
	}
	return json.Marshal(f)
}
