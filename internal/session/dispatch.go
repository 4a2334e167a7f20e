package session

import (
	"context"
	"log/slog"

	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
	"github.com/mcoot/hotpotato/internal/registry"
	"github.com/mcoot/hotpotato/internal/services/room"
)

// dispatch routes one intent. Everything except JOIN_ROOM needs a bound
// connection; intents from unbound connections are dropped.
func (e *Engine) dispatch(ctx context.Context, conn registry.ConnID, intent protocol.Intent) {
	if join, ok := intent.(protocol.JoinRoom); ok {
		e.join(ctx, conn, join)
		return
	}

	binding, ok := e.registry.Lookup(conn)
	if !ok {
		e.logger.Debug("ignoring intent from unbound connection",
			slog.String("conn", string(conn)),
			slog.String("type", string(intent.IntentType())))
		return
	}

	var err error
	switch i := intent.(type) {
	case protocol.LeaveRoom:
		err = e.leave(ctx, conn, binding)
	case protocol.ToggleReady:
		err = e.toggleReady(ctx, binding)
	case protocol.EnterGameRoom:
		err = e.enterGameRoom(ctx, binding)
	case protocol.StartGame:
		err = e.startRound(ctx, binding, e.rooms.StartRound)
	case protocol.PlayAgain:
		err = e.startRound(ctx, binding, e.rooms.PlayAgain)
	case protocol.PassPotato:
		err = e.passPotato(ctx, binding, i.TargetPlayerID)
	}

	switch {
	case err == nil:
	case isStale(err):
		e.logger.Warn("dropping intent for stale binding",
			slog.String("conn", string(conn)),
			slog.String("room", string(binding.RoomCode)),
			slog.Any("error", err))
		e.registry.Unbind(conn)
	default:
		e.sendError(conn, err)
	}
}

func (e *Engine) join(ctx context.Context, conn registry.ConnID, intent protocol.JoinRoom) {
	if _, bound := e.registry.Lookup(conn); bound {
		e.sendError(conn, model.NewError(model.ErrValidation, alreadyInRoomMessage))
		return
	}

	res, err := e.rooms.Join(ctx, intent.RoomCode, intent.PlayerName)
	if err != nil {
		e.sendError(conn, err)
		return
	}

	e.registry.Bind(conn, res.Player.ID, res.Room.Code)
	snap := protocol.SnapshotFromModel(res.Room)
	e.broadcast(res.Room.Code, protocol.NewRoomEvent(protocol.TypeRoomUpdate, snap, joinedMessage(res.Player.Name)))
	e.sendTo(conn, protocol.JoinSuccess{
		Type:     protocol.TypeJoinSuccess,
		PlayerID: string(res.Player.ID),
		Room:     snap,
	})
}

func (e *Engine) leave(ctx context.Context, conn registry.ConnID, b registry.Binding) error {
	res, err := e.rooms.Leave(ctx, b.RoomCode, b.PlayerID)
	if err != nil {
		return err
	}

	e.registry.Unbind(conn)
	if res.Deleted {
		e.closeWatchers(b.RoomCode)
	} else {
		e.broadcast(b.RoomCode, protocol.NewRoomEvent(protocol.TypeReturnToLobby,
			protocol.SnapshotFromModel(res.Room), returnToLobbyMessage(res.Player.Name)))
	}
	e.sendTo(conn, protocol.LeaveSuccess{Type: protocol.TypeLeaveSuccess, Message: leaveSuccessMessage})
	return nil
}

func (e *Engine) toggleReady(ctx context.Context, b registry.Binding) error {
	r, player, err := e.rooms.ToggleReady(ctx, b.RoomCode, b.PlayerID)
	if err != nil {
		return err
	}
	e.broadcast(b.RoomCode, protocol.NewRoomEvent(protocol.TypeRoomUpdate,
		protocol.SnapshotFromModel(r), readyMessage(player)))
	return nil
}

func (e *Engine) enterGameRoom(ctx context.Context, b registry.Binding) error {
	r, err := e.rooms.EnterGameRoom(ctx, b.RoomCode, b.PlayerID)
	if err != nil {
		return err
	}
	e.broadcast(b.RoomCode, protocol.NewRoomEvent(protocol.TypeGameRoom, protocol.SnapshotFromModel(r), ""))
	return nil
}

type roundStarter func(ctx context.Context, code model.RoomCode, playerID model.PlayerID) (*room.RoundResult, error)

func (e *Engine) startRound(ctx context.Context, b registry.Binding, start roundStarter) error {
	res, err := start(ctx, b.RoomCode, b.PlayerID)
	if err != nil {
		return err
	}

	snap := protocol.SnapshotFromModel(res.Room)
	if res.Room.Phase == model.PhaseCountdown {
		e.broadcast(b.RoomCode, protocol.GamePreparing{
			Type:            protocol.TypeGamePreparing,
			Room:            snap,
			CountdownEndsAt: res.Room.CountdownEndsAt.UnixMilli(),
			Message:         gamePreparingMessage(res.Holder.Name),
		})
		return nil
	}
	e.broadcast(b.RoomCode, protocol.NewRoomEvent(protocol.TypeGameStarted, snap, gameStartedMessage(res.Holder.Name)))
	return nil
}

func (e *Engine) passPotato(ctx context.Context, b registry.Binding, target model.PlayerID) error {
	r, to, err := e.rooms.PassPotato(ctx, b.RoomCode, b.PlayerID, target)
	if err != nil {
		return err
	}
	e.broadcast(b.RoomCode, protocol.NewRoomEvent(protocol.TypePotatoPassed,
		protocol.SnapshotFromModel(r), potatoPassedMessage(to.Name)))
	return nil
}

// Disconnect grace handling

func (e *Engine) disconnect(ctx context.Context, conn registry.ConnID) {
	delete(e.sinks, conn)

	b, ok := e.registry.Lookup(conn)
	if !ok {
		e.logger.Debug("connection closed", slog.String("conn", string(conn)))
		return
	}

	if _, err := e.rooms.MarkDisconnected(ctx, b.RoomCode, b.PlayerID); err != nil {
		if !isStale(err) {
			e.logger.Error("failed to mark player disconnected",
				slog.String("room", string(b.RoomCode)),
				slog.String("player_id", string(b.PlayerID)),
				slog.Any("error", err))
		}
		e.registry.Unbind(conn)
		return
	}

	playerID := b.PlayerID
	timer := e.clock.AfterFunc(e.cfg.GracePeriod, func() {
		// Runs outside the worker; an error here only means the engine stopped
		_ = e.submit(context.Background(), "", func(ctx context.Context) {
			e.expireGrace(ctx, playerID)
		})
	})
	e.grace[playerID] = graceEntry{room: b.RoomCode, timer: timer}

	e.logger.Info("player disconnected, grace period started",
		slog.String("room", string(b.RoomCode)),
		slog.String("player_id", string(playerID)),
		slog.Duration("grace_period", e.cfg.GracePeriod))
}

// expireGrace removes a player whose grace window elapsed, if still present
func (e *Engine) expireGrace(ctx context.Context, playerID model.PlayerID) {
	entry, ok := e.grace[playerID]
	if !ok {
		return
	}
	delete(e.grace, playerID)
	if conn, ok := e.registry.ConnectionFor(playerID); ok {
		e.registry.Unbind(conn)
	}

	res, err := e.rooms.RemoveDisconnected(ctx, entry.room, playerID)
	if err != nil {
		e.logger.Error("failed to remove disconnected player",
			slog.String("room", string(entry.room)),
			slog.String("player_id", string(playerID)),
			slog.Any("error", err))
		return
	}
	if res == nil {
		return
	}
	if res.Deleted {
		e.closeWatchers(entry.room)
		return
	}

	snap := protocol.SnapshotFromModel(res.Room)
	if res.ReturnedToLobby {
		// The snapshot already carries any new host
		e.broadcast(entry.room, protocol.NewRoomEvent(protocol.TypeReturnToLobby, snap,
			disconnectedToLobbyMessage(res.Player.Name)))
		return
	}

	if res.NewHost != nil {
		msg := hostTransferredMessage(res.Player.Name, res.NewHost.Name)
		if res.NewHolder != nil {
			msg += ". " + potatoReassignedMessage(res.NewHolder.Name)
		}
		e.broadcast(entry.room, protocol.HostTransferred{
			Type:      protocol.TypeHostTransferred,
			NewHostID: string(res.NewHost.ID),
			Room:      snap,
			Message:   msg,
		})
		return
	}

	msg := disconnectedMessage(res.Player.Name)
	if res.NewHolder != nil {
		msg += ". " + potatoReassignedMessage(res.NewHolder.Name)
	}
	e.broadcast(entry.room, protocol.NewRoomEvent(protocol.TypeRoomUpdate, snap, msg))
}

// Round timer sweep

func (e *Engine) sweep(ctx context.Context) {
	live, err := e.rooms.GoLive(ctx)
	if err != nil {
		e.logger.Error("countdown sweep failed", slog.Any("error", err))
	}
	for _, res := range live {
		e.broadcast(res.Room.Code, protocol.NewRoomEvent(protocol.TypeGameLive,
			protocol.SnapshotFromModel(res.Room), gameLiveMessage(res.Holder.Name)))
	}

	ended, err := e.rooms.ExpireRounds(ctx)
	if err != nil {
		e.logger.Error("round sweep failed", slog.Any("error", err))
	}
	for _, end := range ended {
		msg := protocol.GameEnded{
			Type:    protocol.TypeGameEnded,
			Room:    protocol.SnapshotFromModel(end.Room),
			Message: gameEndedMessage(end.Loser),
		}
		if end.Loser != nil {
			loser := protocol.PlayerFromModel(end.Loser)
			msg.Loser = &loser
		}
		e.broadcast(end.Room.Code, msg)
	}
}
