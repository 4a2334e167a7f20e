package e2e_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/hotpotato/internal/factory"
	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
	"github.com/mcoot/hotpotato/internal/services/room"
)

const frameTimeout = 2 * time.Second

// testServer runs the full HTTP stack over a real listener
type testServer struct {
	app *factory.TestApp
	url string
}

func startTestServer(t *testing.T, opts room.Options) *testServer {
	t.Helper()

	app := factory.NewTestAppWithOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go app.Engine.Run(ctx)

	srv := httptest.NewServer(app.Router("", nil))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-app.Engine.Done()
	})

	return &testServer{app: app, url: srv.URL}
}

func (ts *testServer) sweep(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.app.Engine.Sweep(context.Background()))
}

// wsClient is one browser tab
type wsClient struct {
	t        *testing.T
	conn     *websocket.Conn
	frames   chan protocol.Frame
	playerID string
}

func (ts *testServer) dial(t *testing.T) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.url, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	c := &wsClient{t: t, conn: conn, frames: make(chan protocol.Frame, 64)}
	go func() {
		defer close(c.frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f, err := protocol.DecodeFrame(data)
			if err != nil {
				continue
			}
			c.frames <- f
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

func (ts *testServer) join(t *testing.T, code, name string) *wsClient {
	t.Helper()

	c := ts.dial(t)
	c.send(protocol.JoinRoom{RoomCode: model.RoomCode(code), PlayerName: name})
	c.expect(protocol.TypeRoomUpdate)
	success := c.expect(protocol.TypeJoinSuccess)
	c.playerID = success.PlayerID
	return c
}

func (c *wsClient) send(intent protocol.Intent) {
	c.t.Helper()
	data, err := protocol.EncodeIntent(intent)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

func (c *wsClient) next() protocol.Frame {
	c.t.Helper()
	select {
	case f, ok := <-c.frames:
		require.True(c.t, ok, "connection closed")
		return f
	case <-time.After(frameTimeout):
		c.t.Fatal("timed out waiting for frame")
		return protocol.Frame{}
	}
}

// expect returns the next frame, which must be of type want
func (c *wsClient) expect(want protocol.Type) protocol.Frame {
	c.t.Helper()
	f := c.next()
	require.Equal(c.t, want, f.Type, "frame: %+v", f)
	return f
}

// quiet asserts nothing arrives for a short while
func (c *wsClient) quiet() {
	c.t.Helper()
	select {
	case f, ok := <-c.frames:
		if ok {
			c.t.Fatalf("unexpected frame %s: %+v", f.Type, f)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestE2E_FullGame(t *testing.T) {
	ts := startTestServer(t, room.DefaultOptions())

	alice := ts.join(t, "PARTY", "Alice")
	bob := ts.join(t, "PARTY", "Bob")
	alice.expect(protocol.TypeRoomUpdate)
	carol := ts.join(t, "PARTY", "Carol")
	alice.expect(protocol.TypeRoomUpdate)
	bob.expect(protocol.TypeRoomUpdate)

	// Bob gets ready
	bob.send(protocol.ToggleReady{})
	for _, c := range []*wsClient{alice, bob, carol} {
		f := c.expect(protocol.TypeRoomUpdate)
		assert.Equal(t, "Bob is ready", f.Message)
		assert.True(t, f.Room.Player(bob.playerID).IsReady)
	}

	// Host moves everyone to the game screen
	alice.send(protocol.EnterGameRoom{})
	for _, c := range []*wsClient{alice, bob, carol} {
		c.expect(protocol.TypeGameRoom)
	}

	// Carol holds first, round is 10s + 0.25 * 20s = 15s
	ts.app.MockRandom.QueueIntn(2)
	ts.app.MockRandom.QueueFloat64(0.25)
	alice.send(protocol.StartGame{})
	start := ts.app.MockClock.Now()
	for _, c := range []*wsClient{alice, bob, carol} {
		f := c.expect(protocol.TypeGameStarted)
		require.NotNil(t, f.Room.PotatoHolderID)
		assert.Equal(t, carol.playerID, *f.Room.PotatoHolderID)
		require.NotNil(t, f.Room.EndTime)
		assert.Equal(t, start.Add(15*time.Second).UnixMilli(), *f.Room.EndTime)
		assert.Equal(t, "playing", f.Room.Phase)
	}

	// Only the holder may pass
	bob.send(protocol.PassPotato{TargetPlayerID: model.PlayerID(alice.playerID)})
	assert.Equal(t, protocol.CodeNotPotatoHolder, bob.expect(protocol.TypeError).Code)
	alice.quiet()

	carol.send(protocol.PassPotato{TargetPlayerID: "nobody"})
	assert.Equal(t, protocol.CodeInvalidTarget, carol.expect(protocol.TypeError).Code)

	carol.send(protocol.PassPotato{TargetPlayerID: model.PlayerID(alice.playerID)})
	for _, c := range []*wsClient{alice, bob, carol} {
		f := c.expect(protocol.TypePotatoPassed)
		assert.Equal(t, alice.playerID, *f.Room.PotatoHolderID)
	}

	// Joining mid-round is refused
	late := ts.dial(t)
	late.send(protocol.JoinRoom{RoomCode: "PARTY", PlayerName: "Dave"})
	assert.Equal(t, protocol.CodeInvalidPhase, late.expect(protocol.TypeError).Code)

	// Nothing happens before the deadline
	ts.app.MockClock.Advance(14 * time.Second)
	ts.sweep(t)
	alice.quiet()

	ts.app.MockClock.Advance(time.Second)
	ts.sweep(t)
	for _, c := range []*wsClient{alice, bob, carol} {
		f := c.expect(protocol.TypeGameEnded)
		require.NotNil(t, f.Loser)
		assert.Equal(t, alice.playerID, f.Loser.ID)
		assert.Equal(t, "ended", f.Room.Phase)
		require.NotNil(t, f.Room.PotatoHolderID)
		assert.Equal(t, alice.playerID, *f.Room.PotatoHolderID)
	}

	// Only the host restarts
	bob.send(protocol.PlayAgain{})
	assert.Equal(t, protocol.CodeNotHost, bob.expect(protocol.TypeError).Code)

	ts.app.MockRandom.QueueIntn(0)
	ts.app.MockRandom.QueueFloat64(1)
	alice.send(protocol.PlayAgain{})
	for _, c := range []*wsClient{alice, bob, carol} {
		f := c.expect(protocol.TypeGameStarted)
		assert.Equal(t, alice.playerID, *f.Room.PotatoHolderID)
	}

	// Host leaves mid-round: everyone back to the lobby, Bob takes over
	alice.send(protocol.LeaveRoom{})
	alice.expect(protocol.TypeLeaveSuccess)
	for _, c := range []*wsClient{bob, carol} {
		f := c.expect(protocol.TypeReturnToLobby)
		assert.Equal(t, "lobby", f.Room.Phase)
		assert.Equal(t, bob.playerID, f.Room.HostID)
		assert.Len(t, f.Room.Players, 2)
		for _, p := range f.Room.Players {
			assert.False(t, p.IsReady)
		}
	}
}

func TestE2E_DisconnectAndHostTransfer(t *testing.T) {
	ts := startTestServer(t, room.DefaultOptions())

	alice := ts.join(t, "PARTY", "Alice")
	bob := ts.join(t, "PARTY", "Bob")
	alice.expect(protocol.TypeRoomUpdate)

	// Alice's tab crashes
	require.NoError(t, alice.conn.Close())
	require.Eventually(t, func() bool {
		stats, err := ts.app.Engine.Stats(context.Background())
		return err == nil && stats.PendingGraces == 1
	}, frameTimeout, 10*time.Millisecond)
	bob.quiet()

	snap, err := ts.app.Engine.Room(context.Background(), "PARTY")
	require.NoError(t, err)
	assert.False(t, snap.Player(alice.playerID).Connected)

	ts.app.MockClock.Advance(5 * time.Second)
	f := bob.expect(protocol.TypeHostTransferred)
	assert.Equal(t, bob.playerID, f.NewHostID)
	assert.Len(t, f.Room.Players, 1)
	assert.True(t, f.Room.Player(bob.playerID).IsHost)
}

func TestE2E_CountdownRound(t *testing.T) {
	opts := room.DefaultOptions()
	opts.Countdown = 3 * time.Second
	ts := startTestServer(t, opts)

	alice := ts.join(t, "PARTY", "Alice")
	bob := ts.join(t, "PARTY", "Bob")
	alice.expect(protocol.TypeRoomUpdate)

	ts.app.MockRandom.QueueIntn(1)
	ts.app.MockRandom.QueueFloat64(0)
	alice.send(protocol.StartGame{})
	for _, c := range []*wsClient{alice, bob} {
		f := c.expect(protocol.TypeGamePreparing)
		assert.Equal(t, "countdown", f.Room.Phase)
		assert.Equal(t, ts.app.MockClock.Now().Add(3*time.Second).UnixMilli(), f.CountdownEndsAt)
	}

	// Passing is not allowed before the round goes live
	bob.send(protocol.PassPotato{TargetPlayerID: model.PlayerID(alice.playerID)})
	assert.Equal(t, protocol.CodeInvalidPhase, bob.expect(protocol.TypeError).Code)

	ts.app.MockClock.Advance(3 * time.Second)
	ts.sweep(t)
	for _, c := range []*wsClient{alice, bob} {
		f := c.expect(protocol.TypeGameLive)
		assert.Equal(t, "playing", f.Room.Phase)
		require.NotNil(t, f.Room.EndTime)
	}
}

func TestE2E_MalformedInput(t *testing.T) {
	ts := startTestServer(t, room.DefaultOptions())
	c := ts.dial(t)

	for _, raw := range []string{`not json`, `{"type":"DANCE"}`, `{"roomCode":"X"}`} {
		require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		assert.Equal(t, protocol.CodeMalformed, c.expect(protocol.TypeError).Code, raw)
	}

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"JOIN_ROOM","roomCode":"X"}`)))
	assert.Equal(t, protocol.CodeValidation, c.expect(protocol.TypeError).Code)

	// Still usable
	c.send(protocol.JoinRoom{RoomCode: "X", PlayerName: "Alice"})
	c.expect(protocol.TypeRoomUpdate)
	c.expect(protocol.TypeJoinSuccess)
}

func TestE2E_InspectionAPI(t *testing.T) {
	ts := startTestServer(t, room.DefaultOptions())
	ts.join(t, "PARTY", "Alice")

	resp, err := http.Get(ts.url + "/api/v1/rooms/PARTY")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		RoomID  string `json:"roomId"`
		Players []struct {
			Name string `json:"name"`
		} `json:"players"`
		JoinURL string `json:"join_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "PARTY", body.RoomID)
	require.Len(t, body.Players, 1)
	assert.Equal(t, "Alice", body.Players[0].Name)
	assert.Equal(t, ts.url+"/join/PARTY", body.JoinURL)
}

func TestE2E_RoomFullAndDuplicateName(t *testing.T) {
	ts := startTestServer(t, room.DefaultOptions())

	first := ts.join(t, "PARTY", "P1")
	for _, name := range []string{"P2", "P3", "P4"} {
		ts.join(t, "PARTY", name)
		first.expect(protocol.TypeRoomUpdate)
	}

	extra := ts.dial(t)
	extra.send(protocol.JoinRoom{RoomCode: "PARTY", PlayerName: "P5"})
	assert.Equal(t, protocol.CodeRoomFull, extra.expect(protocol.TypeError).Code)

	other := ts.join(t, "OTHER", "P1")
	again := ts.dial(t)
	again.send(protocol.JoinRoom{RoomCode: "OTHER", PlayerName: "P1"})
	assert.Equal(t, protocol.CodeDuplicateName, again.expect(protocol.TypeError).Code)
	other.quiet()
}

func TestE2E_RejoinDuringGraceGetsNewIdentity(t *testing.T) {
	ts := startTestServer(t, room.DefaultOptions())

	alice := ts.join(t, "PARTY", "Alice")
	bob := ts.join(t, "PARTY", "Bob")
	alice.expect(protocol.TypeRoomUpdate)

	require.NoError(t, bob.conn.Close())
	require.Eventually(t, func() bool {
		stats, err := ts.app.Engine.Stats(context.Background())
		return err == nil && stats.PendingGraces == 1
	}, frameTimeout, 10*time.Millisecond)

	// The old name is still held, so Bob comes back under another one
	benny := ts.join(t, "PARTY", "Benny")
	assert.NotEqual(t, bob.playerID, benny.playerID)
	f := alice.expect(protocol.TypeRoomUpdate)
	assert.Len(t, f.Room.Players, 3)

	ts.app.MockClock.Advance(5 * time.Second)
	for _, c := range []*wsClient{alice, benny} {
		f := c.expect(protocol.TypeRoomUpdate)
		assert.Equal(t, "Bob has disconnected", f.Message)
		assert.Len(t, f.Room.Players, 2)
		assert.Equal(t, alice.playerID, f.Room.HostID)
	}
}
