package session

import (
	"errors"

	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
)

// ErrStopped is returned by engine calls once the engine has shut down
var ErrStopped = errors.New("session engine stopped")

// toErrorFrame converts an operation error into the ERROR frame sent to the
// originating connection. ok is false for errors that are not the player's fault.
func toErrorFrame(err error) (frame protocol.Error, ok bool) {
	code, fallback := errorCode(err)
	if code == protocol.CodeInternal {
		return protocol.NewError(code, fallback), false
	}

	message := model.UserMessage(err)
	if message == "" {
		message = fallback
	}
	return protocol.NewError(code, message), true
}

func errorCode(err error) (code, fallback string) {
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		return protocol.CodeMalformed, "Invalid message"
	case errors.Is(err, model.ErrValidation):
		return protocol.CodeValidation, "Invalid input"
	case errors.Is(err, model.ErrCapacity):
		return protocol.CodeRoomFull, "Room is full"
	case errors.Is(err, model.ErrPhase):
		return protocol.CodeInvalidPhase, "Not allowed right now"
	case errors.Is(err, model.ErrRole):
		return protocol.CodeNotHost, "Only the host can do that"
	case errors.Is(err, model.ErrAuthority):
		return protocol.CodeNotPotatoHolder, "You do not have the potato"
	case errors.Is(err, model.ErrTarget):
		return protocol.CodeInvalidTarget, "Invalid target player"
	case errors.Is(err, model.ErrDuplicateName):
		return protocol.CodeDuplicateName, "Player name already taken"
	case errors.Is(err, model.ErrPlayerCount):
		return protocol.CodeNotEnoughPlayers, "Not enough players"
	case errors.Is(err, model.ErrNotReady):
		return protocol.CodeNotReady, "Not everyone is ready"
	default:
		return protocol.CodeInternal, "Internal server error"
	}
}

// isStale reports errors caused by a binding that no longer matches the store;
// these are dropped like intents from unregistered connections
func isStale(err error) bool {
	return errors.Is(err, model.ErrRoomNotFound) || errors.Is(err, model.ErrPlayerNotFound)
}
