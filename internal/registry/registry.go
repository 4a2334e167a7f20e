package registry

import "github.com/mcoot/hotpotato/internal/model"

// ConnID identifies one live transport connection
type ConnID string

// Binding is the (player, room) pair a connection speaks for
type Binding struct {
	PlayerID model.PlayerID
	RoomCode model.RoomCode
}

// Registry maps live connections to the player and room they joined.
// It is not safe for concurrent use; the session engine owns it.
type Registry struct {
	bindings map[ConnID]Binding
	byPlayer map[model.PlayerID]ConnID
	byRoom   map[model.RoomCode][]ConnID // bind order
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		bindings: make(map[ConnID]Binding),
		byPlayer: make(map[model.PlayerID]ConnID),
		byRoom:   make(map[model.RoomCode][]ConnID),
	}
}

// Bind associates conn with a player in a room, replacing any earlier binding
func (r *Registry) Bind(conn ConnID, player model.PlayerID, room model.RoomCode) {
	r.Unbind(conn)
	r.bindings[conn] = Binding{PlayerID: player, RoomCode: room}
	r.byPlayer[player] = conn
	r.byRoom[room] = append(r.byRoom[room], conn)
}

// Lookup returns the binding for conn
func (r *Registry) Lookup(conn ConnID) (Binding, bool) {
	b, ok := r.bindings[conn]
	return b, ok
}

// ConnectionFor returns the connection currently speaking for a player
func (r *Registry) ConnectionFor(player model.PlayerID) (ConnID, bool) {
	conn, ok := r.byPlayer[player]
	return conn, ok
}

// Unbind removes conn's binding and returns what it was
func (r *Registry) Unbind(conn ConnID) (Binding, bool) {
	b, ok := r.bindings[conn]
	if !ok {
		return Binding{}, false
	}
	delete(r.bindings, conn)
	if r.byPlayer[b.PlayerID] == conn {
		delete(r.byPlayer, b.PlayerID)
	}

	conns := r.byRoom[b.RoomCode]
	for i, c := range conns {
		if c == conn {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.byRoom, b.RoomCode)
	} else {
		r.byRoom[b.RoomCode] = conns
	}
	return b, true
}

// ConnectionsInRoom returns the connections bound to a room in bind order
func (r *Registry) ConnectionsInRoom(room model.RoomCode) []ConnID {
	conns := r.byRoom[room]
	out := make([]ConnID, len(conns))
	copy(out, conns)
	return out
}

// Len returns the number of bound connections
func (r *Registry) Len() int {
	return len(r.bindings)
}
