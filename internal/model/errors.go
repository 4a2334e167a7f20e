package model

import "errors"

// Error kinds. Every failed operation unwraps to exactly one of these.
var (
	ErrValidation    = errors.New("invalid input")
	ErrCapacity      = errors.New("room is full")
	ErrPhase         = errors.New("operation not allowed in current phase")
	ErrRole          = errors.New("player is not the host")
	ErrAuthority     = errors.New("player does not hold the potato")
	ErrTarget        = errors.New("target player is not in room")
	ErrDuplicateName = errors.New("player name already taken")
	ErrPlayerCount   = errors.New("not enough players")
	ErrNotReady      = errors.New("not all players are ready")

	// Lookup errors
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
)

// GameError pairs an error kind with the message shown to the player
type GameError struct {
	Kind    error
	Message string
}

// NewError creates a GameError of the given kind
func NewError(kind error, message string) *GameError {
	return &GameError{Kind: kind, Message: message}
}

func (e *GameError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap lets errors.Is match the kind sentinel
func (e *GameError) Unwrap() error {
	return e.Kind
}

// UserMessage returns the user-facing text for err, or "" if err carries none
func UserMessage(err error) string {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return ""
}
