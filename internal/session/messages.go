package session

import (
	"fmt"

	"github.com/mcoot/hotpotato/internal/model"
)

// Human-readable texts attached to room-wide notifications

func joinedMessage(name string) string {
	return fmt.Sprintf("%s joined the room!", name)
}

func readyMessage(p *model.Player) string {
	if p.IsReady {
		return fmt.Sprintf("%s is ready", p.Name)
	}
	return fmt.Sprintf("%s is not ready", p.Name)
}

func gameStartedMessage(holder string) string {
	return fmt.Sprintf("Game started! %s has the potato!", holder)
}

func gamePreparingMessage(holder string) string {
	return fmt.Sprintf("Get ready! %s will start with the potato!", holder)
}

func gameLiveMessage(holder string) string {
	return fmt.Sprintf("Go! %s has the potato!", holder)
}

func potatoPassedMessage(target string) string {
	return fmt.Sprintf("Potato passed to %s!", target)
}

func gameEndedMessage(loser *model.Player) string {
	name := "Someone"
	if loser != nil {
		name = loser.Name
	}
	return fmt.Sprintf("💥 BOOM! %s lost!", name)
}

func returnToLobbyMessage(name string) string {
	return fmt.Sprintf("%s left. Returning to lobby...", name)
}

func hostTransferredMessage(oldHost, newHost string) string {
	return fmt.Sprintf("%s has left. %s is now the host", oldHost, newHost)
}

func disconnectedMessage(name string) string {
	return fmt.Sprintf("%s has disconnected", name)
}

func disconnectedToLobbyMessage(name string) string {
	return fmt.Sprintf("%s has disconnected. Returning to lobby...", name)
}

func potatoReassignedMessage(holder string) string {
	return fmt.Sprintf("%s has the potato!", holder)
}

const (
	leaveSuccessMessage  = "You left the room"
	alreadyInRoomMessage = "You are already in a room. Leave it before joining another."
)
