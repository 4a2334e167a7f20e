package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/mcoot/hotpotato/internal/dependencies/clock"
	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
	"github.com/mcoot/hotpotato/internal/registry"
	"github.com/mcoot/hotpotato/internal/services/room"
)

// Sink delivers outbound messages to one connection
type Sink interface {
	// Send queues msg without blocking; false means the connection's buffer is full
	Send(msg protocol.Message) bool

	// Close tears the connection down. It must not block.
	Close()
}

// Engine is the single worker that owns every room mutation, the connection
// registry, the round sweep and the disconnect grace timers. All state is
// touched only from the Run goroutine; public methods hand it commands and
// wait for them to finish.
type Engine struct {
	rooms    room.ControllerInterface
	registry *registry.Registry
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger

	sinks    map[registry.ConnID]Sink
	grace    map[model.PlayerID]graceEntry
	watchers map[model.RoomCode]map[registry.ConnID]Sink
	watching map[registry.ConnID]model.RoomCode

	cmds    chan command
	stopped chan struct{}
	nextID  atomic.Uint64
}

type command struct {
	conn registry.ConnID // originating connection, if any
	run  func(ctx context.Context)
	done chan struct{}
}

// graceEntry is a pending removal for a player whose connection dropped
type graceEntry struct {
	room  model.RoomCode
	timer clock.Timer
}

// NewEngine creates a new Engine. Call Run to start processing.
func NewEngine(
	rooms room.ControllerInterface,
	reg *registry.Registry,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		rooms:    rooms,
		registry: reg,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "session")),
		sinks:    make(map[registry.ConnID]Sink),
		grace:    make(map[model.PlayerID]graceEntry),
		watchers: make(map[model.RoomCode]map[registry.ConnID]Sink),
		watching: make(map[registry.ConnID]model.RoomCode),
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
}

// Run processes commands and sweeps until ctx is cancelled.
// It must be called exactly once.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("session engine started",
		slog.Duration("grace_period", e.cfg.GracePeriod),
		slog.Duration("sweep_interval", e.cfg.SweepInterval))

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-e.cmds:
			e.execute(ctx, cmd)

		case <-ticker.C:
			e.execute(ctx, command{run: e.sweep})

		case <-ctx.Done():
			e.shutdown()
			close(e.stopped)
			return
		}
	}
}

// Done is closed once Run has returned
func (e *Engine) Done() <-chan struct{} {
	return e.stopped
}

// execute runs one command, containing any panic to that command
func (e *Engine) execute(ctx context.Context, cmd command) {
	if cmd.done != nil {
		defer close(cmd.done)
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in session command",
				slog.Any("panic", r),
				slog.String("conn", string(cmd.conn)),
				slog.String("stack", string(debug.Stack())))
			if cmd.conn != "" {
				e.sendTo(cmd.conn, protocol.NewError(protocol.CodeInternal, "Internal server error"))
			}
		}
	}()
	cmd.run(ctx)
}

// submit hands fn to the worker and waits for it to finish
func (e *Engine) submit(ctx context.Context, conn registry.ConnID, fn func(ctx context.Context)) error {
	cmd := command{conn: conn, run: fn, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-cmd.done
	return nil
}

func (e *Engine) shutdown() {
	for id, entry := range e.grace {
		entry.timer.Stop()
		delete(e.grace, id)
	}
	for conn, sink := range e.sinks {
		sink.Close()
		delete(e.sinks, conn)
	}
	for code := range e.watchers {
		e.closeWatchers(code)
	}
	e.logger.Info("session engine stopped")
}

// Connect registers a new transport connection and returns its id
func (e *Engine) Connect(ctx context.Context, sink Sink) (registry.ConnID, error) {
	conn := registry.ConnID(fmt.Sprintf("conn-%d", e.nextID.Add(1)))
	err := e.submit(ctx, conn, func(ctx context.Context) {
		e.sinks[conn] = sink
		e.logger.Debug("connection opened", slog.String("conn", string(conn)))
	})
	if err != nil {
		return "", err
	}
	return conn, nil
}

// HandleFrame decodes one inbound frame and applies it. Malformed frames are
// answered with a private ERROR; the connection stays usable.
func (e *Engine) HandleFrame(ctx context.Context, conn registry.ConnID, data []byte) error {
	intent, err := protocol.DecodeIntent(data)
	if err != nil {
		return e.submit(ctx, conn, func(ctx context.Context) {
			e.logger.Debug("rejected inbound frame",
				slog.String("conn", string(conn)),
				slog.Any("error", err))
			e.sendError(conn, err)
		})
	}
	return e.Handle(ctx, conn, intent)
}

// Handle applies one decoded intent from conn
func (e *Engine) Handle(ctx context.Context, conn registry.ConnID, intent protocol.Intent) error {
	return e.submit(ctx, conn, func(ctx context.Context) {
		e.dispatch(ctx, conn, intent)
	})
}

// Disconnect reports that conn's transport closed. A joined player stays
// listed until the grace period passes.
func (e *Engine) Disconnect(ctx context.Context, conn registry.ConnID) error {
	return e.submit(ctx, conn, func(ctx context.Context) {
		e.disconnect(ctx, conn)
	})
}

// Sweep runs a round/countdown sweep immediately
func (e *Engine) Sweep(ctx context.Context) error {
	return e.submit(ctx, "", e.sweep)
}

// Room returns the current snapshot of one room
func (e *Engine) Room(ctx context.Context, code model.RoomCode) (*protocol.RoomSnapshot, error) {
	var snap *protocol.RoomSnapshot
	var opErr error
	err := e.submit(ctx, "", func(ctx context.Context) {
		r, err := e.rooms.GetRoom(ctx, code)
		if err != nil {
			opErr = err
			return
		}
		s := protocol.SnapshotFromModel(r)
		snap = &s
	})
	if err != nil {
		return nil, err
	}
	return snap, opErr
}

// Rooms returns snapshots of every live room, ordered by code
func (e *Engine) Rooms(ctx context.Context) ([]protocol.RoomSnapshot, error) {
	var snaps []protocol.RoomSnapshot
	var opErr error
	err := e.submit(ctx, "", func(ctx context.Context) {
		rooms, err := e.rooms.ListRooms(ctx)
		if err != nil {
			opErr = err
			return
		}
		snaps = make([]protocol.RoomSnapshot, len(rooms))
		for i, r := range rooms {
			snaps[i] = protocol.SnapshotFromModel(r)
		}
	})
	if err != nil {
		return nil, err
	}
	return snaps, opErr
}

// SuggestCode returns a room code no live room is using
func (e *Engine) SuggestCode(ctx context.Context) (model.RoomCode, error) {
	var code model.RoomCode
	var opErr error
	err := e.submit(ctx, "", func(ctx context.Context) {
		code, opErr = e.rooms.SuggestCode(ctx)
	})
	if err != nil {
		return "", err
	}
	return code, opErr
}

// Stats is a point-in-time count of engine state
type Stats struct {
	Connections   int
	Bound         int
	PendingGraces int
	Watchers      int
}

// Stats returns current connection and grace timer counts
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := e.submit(ctx, "", func(ctx context.Context) {
		st = Stats{
			Connections:   len(e.sinks),
			Bound:         e.registry.Len(),
			PendingGraces: len(e.grace),
			Watchers:      len(e.watching),
		}
	})
	return st, err
}

// Fanout

// broadcast delivers msg to every open connection bound to the room, then
// to the room's watchers
func (e *Engine) broadcast(code model.RoomCode, msg protocol.Message) {
	for _, conn := range e.registry.ConnectionsInRoom(code) {
		e.sendTo(conn, msg)
	}
	e.notifyWatchers(code, msg)
}

// sendTo delivers msg to one connection. A connection that cannot keep up is
// closed; its disconnect then follows the normal grace path.
func (e *Engine) sendTo(conn registry.ConnID, msg protocol.Message) {
	sink, ok := e.sinks[conn]
	if !ok {
		return
	}
	if !sink.Send(msg) {
		e.logger.Warn("closing slow connection",
			slog.String("conn", string(conn)),
			slog.String("type", string(msg.MessageType())))
		delete(e.sinks, conn)
		sink.Close()
	}
}

func (e *Engine) sendError(conn registry.ConnID, err error) {
	frame, ok := toErrorFrame(err)
	if !ok {
		e.logger.Error("session operation failed",
			slog.String("conn", string(conn)),
			slog.Any("error", err))
	}
	e.sendTo(conn, frame)
}
