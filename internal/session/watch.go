package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
	"github.com/mcoot/hotpotato/internal/registry"
)

// Watch subscribes sink to every room-wide notification of code without
// joining. The current snapshot is queued first as a ROOM_UPDATE. Watchers
// are closed when the room is deleted.
func (e *Engine) Watch(ctx context.Context, code model.RoomCode, sink Sink) (registry.ConnID, error) {
	id := registry.ConnID(fmt.Sprintf("watch-%d", e.nextID.Add(1)))
	var opErr error
	err := e.submit(ctx, "", func(ctx context.Context) {
		r, err := e.rooms.GetRoom(ctx, code)
		if err != nil {
			opErr = err
			return
		}
		if e.watchers[code] == nil {
			e.watchers[code] = make(map[registry.ConnID]Sink)
		}
		e.watchers[code][id] = sink
		e.watching[id] = code
		sink.Send(protocol.NewRoomEvent(protocol.TypeRoomUpdate, protocol.SnapshotFromModel(r), ""))
		e.logger.Debug("watcher attached", slog.String("room", string(code)), slog.String("watcher", string(id)))
	})
	if err != nil {
		return "", err
	}
	if opErr != nil {
		return "", opErr
	}
	return id, nil
}

// Unwatch detaches a watcher. Unknown ids are ignored.
func (e *Engine) Unwatch(ctx context.Context, id registry.ConnID) error {
	return e.submit(ctx, "", func(ctx context.Context) {
		e.dropWatcher(id)
	})
}

func (e *Engine) dropWatcher(id registry.ConnID) {
	code, ok := e.watching[id]
	if !ok {
		return
	}
	delete(e.watching, id)
	delete(e.watchers[code], id)
	if len(e.watchers[code]) == 0 {
		delete(e.watchers, code)
	}
}

// notifyWatchers fans msg out to the room's watchers, dropping any that lag
func (e *Engine) notifyWatchers(code model.RoomCode, msg protocol.Message) {
	for id, sink := range e.watchers[code] {
		if sink.Send(msg) {
			continue
		}
		e.logger.Warn("closing slow watcher", slog.String("watcher", string(id)))
		e.dropWatcher(id)
		sink.Close()
	}
}

// closeWatchers ends every watch on a deleted room
func (e *Engine) closeWatchers(code model.RoomCode) {
	for id, sink := range e.watchers[code] {
		e.dropWatcher(id)
		sink.Close()
	}
}
