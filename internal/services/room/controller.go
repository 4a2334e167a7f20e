package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/mcoot/hotpotato/internal/dependencies/clock"
	"github.com/mcoot/hotpotato/internal/dependencies/identity"
	"github.com/mcoot/hotpotato/internal/dependencies/random"
	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/storage"
)

const (
	// MaxRoomCodeLength bounds client-chosen room codes
	MaxRoomCodeLength = 32
	// SuggestedCodeLength is the length of generated room codes
	SuggestedCodeLength = 6
	// SuggestedCodeAlphabet avoids easily confused characters
	SuggestedCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxSuggestAttempts = 16
)

// Controller runs the room state machine on top of the room store.
// Every operation loads the room, validates, then mutates and saves;
// nothing is written when a check fails. Callers must serialize calls.
type Controller struct {
	storage  storage.Storage
	clock    clock.Clock
	random   random.Random
	identity identity.Generator
	opts     Options
	logger   *slog.Logger
}

// NewController creates a new room Controller
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	identity identity.Generator,
	opts Options,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:  storage,
		clock:    clock,
		random:   random,
		identity: identity,
		opts:     opts,
		logger:   logger.With(slog.String("component", "room")),
	}
}

// JoinResult describes a successful join
type JoinResult struct {
	Room    *model.Room
	Player  model.Player
	Created bool
}

// DepartureResult describes a player leaving a room, voluntarily or not
type DepartureResult struct {
	Room    *model.Room // nil when the room was deleted
	Player  model.Player
	NewHost *model.Player // set when host authority moved
	Deleted bool

	// Set only by RemoveDisconnected
	ReturnedToLobby bool          // the round could not continue
	NewHolder       *model.Player // received the removed holder's potato
}

// RoundResult describes a round that was started or went live
type RoundResult struct {
	Room     *model.Room
	Holder   model.Player
	Duration time.Duration
}

// RoundEnd describes a round that expired
type RoundEnd struct {
	Room  *model.Room
	Loser *model.Player // nil only if the holder vanished mid-round
}

// GetRoom retrieves a room by code
func (c *Controller) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return c.storage.GetRoom(ctx, code)
}

// ListRooms returns all live rooms
func (c *Controller) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return c.storage.ListRooms(ctx)
}

// SuggestCode generates a room code that no live room is using
func (c *Controller) SuggestCode(ctx context.Context) (model.RoomCode, error) {
	for range maxSuggestAttempts {
		code := model.RoomCode(c.random.String(SuggestedCodeLength, SuggestedCodeAlphabet))
		if code == "" {
			continue
		}
		exists, err := c.storage.RoomExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not find an unused room code")
}

// Join admits a new player, creating the room on first join
func (c *Controller) Join(ctx context.Context, code model.RoomCode, name string) (*JoinResult, error) {
	if code == "" || name == "" {
		return nil, model.NewError(model.ErrValidation, "Room code and player name required")
	}
	if utf8.RuneCountInString(string(code)) > MaxRoomCodeLength {
		return nil, model.NewError(model.ErrValidation,
			fmt.Sprintf("Room code must be at most %d characters", MaxRoomCodeLength))
	}
	if n := utf8.RuneCountInString(name); n < model.MinNameLength || n > model.MaxNameLength {
		return nil, model.NewError(model.ErrValidation,
			fmt.Sprintf("Player name must be between %d and %d characters", model.MinNameLength, model.MaxNameLength))
	}

	now := c.clock.Now()
	created := false
	room, err := c.storage.GetRoom(ctx, code)
	if errors.Is(err, model.ErrRoomNotFound) {
		room = model.NewRoom(code, now)
		created = true
	} else if err != nil {
		return nil, err
	}

	if room.IsFull() {
		return nil, model.NewError(model.ErrCapacity,
			fmt.Sprintf("Room is full (max %d players)", room.MaxPlayers))
	}
	if room.Phase == model.PhasePlaying || room.Phase == model.PhaseCountdown {
		return nil, model.NewError(model.ErrPhase, "Game in progress! Please wait for the next round.")
	}
	if room.HasName(name) {
		return nil, model.NewError(model.ErrDuplicateName,
			"Player name already taken in this room. Please change it and try again.")
	}

	player := model.Player{
		ID:         model.PlayerID(c.identity.NewID()),
		Name:       name,
		Connected:  true,
		IsHost:     room.IsEmpty(),
		PotatoSlot: room.NextSlot(),
		JoinedAt:   now,
	}
	if player.IsHost {
		room.HostID = player.ID
	}
	room.Players = append(room.Players, player)
	room.UpdatedAt = now

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("player joined",
		slog.String("room", string(code)),
		slog.String("player_id", string(player.ID)),
		slog.Bool("created", created),
	)
	return &JoinResult{Room: room, Player: player, Created: created}, nil
}

// Leave removes a player immediately. Everyone left behind goes back to the
// lobby with readiness cleared; the room is deleted once empty.
func (c *Controller) Leave(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*DepartureResult, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	removed, newHost := room.RemovePlayer(playerID)
	if removed == nil {
		return nil, model.ErrPlayerNotFound
	}

	result := &DepartureResult{Player: *removed, NewHost: newHost}
	if room.IsEmpty() {
		if err := c.storage.DeleteRoom(ctx, code); err != nil {
			return nil, err
		}
		result.Deleted = true
		c.logger.Info("room deleted", slog.String("room", string(code)))
		return result, nil
	}

	room.ResetToLobby()
	room.ClearReadiness()
	room.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	result.Room = room
	c.logger.Info("player left",
		slog.String("room", string(code)),
		slog.String("player_id", string(playerID)),
	)
	return result, nil
}

// ToggleReady flips a guest's readiness
func (c *Controller) ToggleReady(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, *model.Player, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	player := room.GetPlayer(playerID)
	if player == nil {
		return nil, nil, model.ErrPlayerNotFound
	}
	if room.HostID == playerID {
		return nil, nil, model.NewError(model.ErrRole, "Host doesn't need to ready up")
	}

	player.IsReady = !player.IsReady
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, nil, err
	}
	return room, player, nil
}

// EnterGameRoom checks host authority for moving everyone to the game screen.
// It does not change state.
func (c *Controller) EnterGameRoom(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.GetPlayer(playerID) == nil {
		return nil, model.ErrPlayerNotFound
	}
	if room.HostID != playerID {
		return nil, model.NewError(model.ErrRole, "Only the host can start the game")
	}
	return room, nil
}

// StartRound starts a round from the lobby
func (c *Controller) StartRound(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*RoundResult, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.GetPlayer(playerID) == nil {
		return nil, model.ErrPlayerNotFound
	}

	if room.HostID != playerID {
		return nil, model.NewError(model.ErrRole, "Only the host can start the game")
	}
	if len(room.Players) < model.MinPlayers {
		return nil, model.NewError(model.ErrPlayerCount,
			fmt.Sprintf("Need at least %d players to start", model.MinPlayers))
	}
	if room.Phase != model.PhaseLobby {
		return nil, model.NewError(model.ErrPhase, "Game already in progress")
	}
	if c.opts.RequireReady && !room.AllGuestsReady() {
		return nil, model.NewError(model.ErrNotReady, "Everyone needs to be ready to start")
	}

	return c.beginRound(ctx, room)
}

// PlayAgain chains straight from an ended round into a new one
func (c *Controller) PlayAgain(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*RoundResult, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.GetPlayer(playerID) == nil {
		return nil, model.ErrPlayerNotFound
	}

	if room.HostID != playerID {
		return nil, model.NewError(model.ErrRole, "Only the host can reset the game")
	}
	if room.Phase != model.PhaseEnded {
		return nil, model.NewError(model.ErrPhase, "Game is still in progress")
	}
	if len(room.Players) < model.MinPlayers {
		return nil, model.NewError(model.ErrPlayerCount,
			fmt.Sprintf("Need at least %d players to start", model.MinPlayers))
	}

	room.ResetToLobby()
	return c.beginRound(ctx, room)
}

// beginRound draws the holder and duration, then either starts playing or
// enters the countdown
func (c *Controller) beginRound(ctx context.Context, room *model.Room) (*RoundResult, error) {
	now := c.clock.Now()
	holder := room.Players[c.random.Intn(len(room.Players))]
	duration := c.drawDuration()

	holderID := holder.ID
	room.PotatoHolderID = &holderID
	if c.opts.Countdown > 0 {
		countdownEnds := now.Add(c.opts.Countdown)
		room.Phase = model.PhaseCountdown
		room.CountdownEndsAt = &countdownEnds
		room.PendingDuration = duration
		room.EndTime = nil
	} else {
		end := now.Add(duration)
		room.Phase = model.PhasePlaying
		room.EndTime = &end
	}
	room.UpdatedAt = now

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("round started",
		slog.String("room", string(room.Code)),
		slog.String("holder", string(holder.ID)),
		slog.Duration("duration", duration),
		slog.String("phase", string(room.Phase)),
	)
	return &RoundResult{Room: room, Holder: holder, Duration: duration}, nil
}

// drawDuration picks a round length uniformly in [RoundMin, RoundMax)
func (c *Controller) drawDuration() time.Duration {
	span := c.opts.RoundMax - c.opts.RoundMin
	if span <= 0 {
		return c.opts.RoundMin
	}
	return c.opts.RoundMin + time.Duration(c.random.Float64()*float64(span))
}

// PassPotato hands the potato from its holder to another member
func (c *Controller) PassPotato(ctx context.Context, code model.RoomCode, playerID, targetID model.PlayerID) (*model.Room, *model.Player, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if room.GetPlayer(playerID) == nil {
		return nil, nil, model.ErrPlayerNotFound
	}

	if room.Phase != model.PhasePlaying {
		return nil, nil, model.NewError(model.ErrPhase, "Game is not active")
	}
	if !room.IsHolder(playerID) {
		return nil, nil, model.NewError(model.ErrAuthority, "You do not have the potato")
	}
	target := room.GetPlayer(targetID)
	if target == nil {
		return nil, nil, model.NewError(model.ErrTarget, "Invalid target player")
	}

	room.PotatoHolderID = &target.ID
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, nil, err
	}
	return room, target, nil
}

// ExpireRounds ends every playing round whose deadline has passed. The holder
// at that moment loses and stays recorded as holder while the room is ended.
func (c *Controller) ExpireRounds(ctx context.Context) ([]RoundEnd, error) {
	rooms, err := c.storage.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var ended []RoundEnd
	for _, room := range rooms {
		if room.Phase != model.PhasePlaying || room.EndTime == nil || now.Before(*room.EndTime) {
			continue
		}

		var loser *model.Player
		if h := room.Holder(); h != nil {
			p := *h
			loser = &p
		}
		room.Phase = model.PhaseEnded
		room.EndTime = nil
		room.UpdatedAt = now

		if err := c.storage.SaveRoom(ctx, room); err != nil {
			return ended, err
		}

		attrs := []any{slog.String("room", string(room.Code))}
		if loser != nil {
			attrs = append(attrs, slog.String("loser", string(loser.ID)))
		}
		c.logger.Info("round ended", attrs...)
		ended = append(ended, RoundEnd{Room: room, Loser: loser})
	}
	return ended, nil
}

// GoLive moves every room whose countdown has finished into play
func (c *Controller) GoLive(ctx context.Context) ([]RoundResult, error) {
	rooms, err := c.storage.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var live []RoundResult
	for _, room := range rooms {
		if room.Phase != model.PhaseCountdown || room.CountdownEndsAt == nil || now.Before(*room.CountdownEndsAt) {
			continue
		}

		holder := room.Holder()
		if holder == nil {
			// Holder left during the countdown and nobody was reassigned
			room.ResetToLobby()
			room.UpdatedAt = now
			if err := c.storage.SaveRoom(ctx, room); err != nil {
				return live, err
			}
			continue
		}

		end := now.Add(room.PendingDuration)
		duration := room.PendingDuration
		room.Phase = model.PhasePlaying
		room.EndTime = &end
		room.CountdownEndsAt = nil
		room.PendingDuration = 0
		room.UpdatedAt = now

		if err := c.storage.SaveRoom(ctx, room); err != nil {
			return live, err
		}
		live = append(live, RoundResult{Room: room, Holder: *holder, Duration: duration})
	}
	return live, nil
}

// MarkDisconnected flags a player whose connection dropped. The player stays
// in the room until RemoveDisconnected runs.
func (c *Controller) MarkDisconnected(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	player := room.GetPlayer(playerID)
	if player == nil {
		return nil, model.ErrPlayerNotFound
	}

	player.Connected = false
	room.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// RemoveDisconnected removes a player once their grace window has passed.
// A player who already left is a no-op (nil result, nil error). If the round
// can no longer continue the room returns to the lobby; a removed holder's
// potato goes to a random remaining player.
func (c *Controller) RemoveDisconnected(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*DepartureResult, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if errors.Is(err, model.ErrRoomNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	wasHolder := room.IsHolder(playerID)
	removed, newHost := room.RemovePlayer(playerID)
	if removed == nil {
		return nil, nil
	}

	result := &DepartureResult{Player: *removed, NewHost: newHost}
	if room.IsEmpty() {
		if err := c.storage.DeleteRoom(ctx, code); err != nil {
			return nil, err
		}
		result.Deleted = true
		c.logger.Info("room deleted", slog.String("room", string(code)))
		return result, nil
	}

	inRound := room.Phase == model.PhasePlaying || room.Phase == model.PhaseCountdown
	switch {
	case inRound && len(room.Players) < model.MinPlayers:
		room.ResetToLobby()
		room.ClearReadiness()
		result.ReturnedToLobby = true
	case inRound && wasHolder:
		next := room.Players[c.random.Intn(len(room.Players))]
		id := next.ID
		room.PotatoHolderID = &id
		result.NewHolder = &next
	}
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	result.Room = room
	c.logger.Info("disconnected player removed",
		slog.String("room", string(code)),
		slog.String("player_id", string(playerID)),
	)
	return result, nil
}

// ControllerInterface is the room state machine as seen by the session engine
type ControllerInterface interface {
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	ListRooms(ctx context.Context) ([]*model.Room, error)
	SuggestCode(ctx context.Context) (model.RoomCode, error)
	Join(ctx context.Context, code model.RoomCode, name string) (*JoinResult, error)
	Leave(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*DepartureResult, error)
	ToggleReady(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, *model.Player, error)
	EnterGameRoom(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, error)
	StartRound(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*RoundResult, error)
	PlayAgain(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*RoundResult, error)
	PassPotato(ctx context.Context, code model.RoomCode, playerID, targetID model.PlayerID) (*model.Room, *model.Player, error)
	ExpireRounds(ctx context.Context) ([]RoundEnd, error)
	GoLive(ctx context.Context) ([]RoundResult, error)
	MarkDisconnected(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*model.Room, error)
	RemoveDisconnected(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*DepartureResult, error)
}

var _ ControllerInterface = (*Controller)(nil)
