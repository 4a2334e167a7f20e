package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/hotpotato/internal/model"
	"github.com/mcoot/hotpotato/internal/protocol"
)

const playHelp = `Commands:
  ready          toggle your ready flag
  start          start a round (host)
  pass <player>  pass the potato by name or id
  again          start another round after a boom (host)
  game           move everyone to the game screen (host)
  leave          leave the room
  room           show the room
  quit           disconnect
`

var (
	errQuit = errors.New("quit")
	errHelp = errors.New("help")
)

func newPlayCmd() *cobra.Command {
	var roomCode string

	cmd := &cobra.Command{
		Use:   "play <name>",
		Short: "Join a room and play interactively",
		Long: `Join a room over the websocket protocol and play from the terminal.

Without --room, the server suggests a fresh room code.

` + playHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if roomCode == "" {
				var suggested RoomCode
				if err := client.Get("/api/v1/room-code", &suggested); err != nil {
					return err
				}
				roomCode = suggested.Code
				if !out.JSON() {
					out.PrintMessage(fmt.Sprintf("Creating room %s (%s)", suggested.Code, suggested.JoinURL))
				}
			}

			wsURL, err := client.WebSocketURL()
			if err != nil {
				return err
			}
			if cfg.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "connecting to %s\n", wsURL)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return Play(ctx, wsURL, roomCode, args[0], cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVarP(&roomCode, "room", "r", "", "Room code to join or create")

	return cmd
}

// playSession tracks what the player has seen so commands can name players
type playSession struct {
	mu       sync.Mutex
	playerID string
	room     *protocol.RoomSnapshot
}

func (s *playSession) observe(f protocol.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Type == protocol.TypeJoinSuccess {
		s.playerID = f.PlayerID
	}
	if f.Type == protocol.TypeLeaveSuccess {
		s.room = nil
		return
	}
	if f.Room != nil {
		s.room = f.Room
	}
}

func (s *playSession) state() (string, *protocol.RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID, s.room
}

// Play joins code as name over the websocket at wsURL, then relays commands
// read from in until in ends, the user quits, ctx is done or the server
// closes the connection
func Play(ctx context.Context, wsURL, code, name string, in io.Reader, out *Output) error {
	out = out.synchronized()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	session := &playSession{}

	send := func(intent protocol.Intent) error {
		data, err := protocol.EncodeIntent(intent)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := send(protocol.JoinRoom{RoomCode: model.RoomCode(code), PlayerName: name}); err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			frame, err := protocol.DecodeFrame(data)
			if err != nil {
				out.PrintError(err)
				continue
			}
			session.observe(frame)
			self, _ := session.state()
			out.PrintFrame(frame, self)
		}
	}()

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	closeConn := func() error {
		err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		if err == nil {
			// Wait briefly for the server to acknowledge
			select {
			case <-readErr:
			case <-time.After(time.Second):
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return closeConn()

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)

		case line, ok := <-lines:
			if !ok {
				return closeConn()
			}
			self, room := session.state()
			intent, err := parseCommand(line, self, room)
			switch {
			case errors.Is(err, errQuit):
				return closeConn()
			case errors.Is(err, errHelp):
				if !out.JSON() {
					fmt.Fprint(out.w, playHelp)
				}
				continue
			case err != nil:
				out.PrintError(err)
				continue
			case intent == nil:
				if room != nil && !out.JSON() {
					fmt.Fprint(out.w, formatRoom(*room, self))
				}
				continue
			}
			if err := send(intent); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

// parseCommand turns one typed line into an intent. A nil intent with no
// error means "show the room".
func parseCommand(line, self string, room *protocol.RoomSnapshot) (protocol.Intent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errHelp
	}

	switch strings.ToLower(fields[0]) {
	case "ready", "r":
		return protocol.ToggleReady{}, nil
	case "start", "s":
		return protocol.StartGame{}, nil
	case "again", "a":
		return protocol.PlayAgain{}, nil
	case "game", "g":
		return protocol.EnterGameRoom{}, nil
	case "leave", "l":
		return protocol.LeaveRoom{}, nil
	case "room":
		return nil, nil
	case "quit", "q", "exit":
		return nil, errQuit
	case "help", "h", "?":
		return nil, errHelp
	case "pass", "p":
		target, err := resolveTarget(strings.Join(fields[1:], " "), self, room)
		if err != nil {
			return nil, err
		}
		return protocol.PassPotato{TargetPlayerID: target}, nil
	default:
		return nil, fmt.Errorf("unknown command %q (type help)", fields[0])
	}
}

// resolveTarget finds a player by id or case-insensitive name. With no
// name and exactly one other player, that player is chosen.
func resolveTarget(name, self string, room *protocol.RoomSnapshot) (model.PlayerID, error) {
	if room == nil {
		return "", errors.New("not in a room")
	}

	if name == "" {
		var others []model.PlayerID
		for _, p := range room.Players {
			if p.ID != self {
				others = append(others, model.PlayerID(p.ID))
			}
		}
		if len(others) == 1 {
			return others[0], nil
		}
		return "", errors.New("pass to whom? usage: pass <player>")
	}

	for _, p := range room.Players {
		if p.ID == name || strings.EqualFold(p.Name, name) {
			return model.PlayerID(p.ID), nil
		}
	}
	return "", fmt.Errorf("no player named %q", name)
}

// describeFrame renders a server frame for a human
func describeFrame(f protocol.Frame, self string) string {
	var b strings.Builder

	switch f.Type {
	case protocol.TypeError:
		fmt.Fprintf(&b, "! %s", f.Message)
		if f.Code != "" {
			fmt.Fprintf(&b, " (%s)", f.Code)
		}
		b.WriteString("\n")
		return b.String()
	case protocol.TypeJoinSuccess:
		fmt.Fprintf(&b, "Joined room %s\n", roomID(f))
	case protocol.TypeGameEnded:
		if f.Loser != nil && f.Loser.ID == self {
			b.WriteString("💥 BOOM! You lost!\n")
		} else if f.Message != "" {
			b.WriteString(f.Message + "\n")
		}
	case protocol.TypeGameRoom:
		b.WriteString("Heading to the game room...\n")
	default:
		if f.Message != "" {
			b.WriteString(f.Message + "\n")
		}
	}

	if f.Room != nil {
		b.WriteString(formatRoom(*f.Room, self))
		if f.Room.PotatoHolderID != nil && *f.Room.PotatoHolderID == self && f.Room.Phase == string(model.PhasePlaying) {
			b.WriteString("You have the potato! Pass it: pass <player>\n")
		}
	}
	return b.String()
}

func roomID(f protocol.Frame) string {
	if f.Room == nil {
		return ""
	}
	return f.Room.RoomID
}
