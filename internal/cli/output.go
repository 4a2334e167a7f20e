package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mcoot/hotpotato/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// synchronized returns an Output safe to use from several goroutines
func (o *Output) synchronized() *Output {
	if _, ok := o.w.(*syncWriter); ok {
		return o
	}
	return &Output{format: o.format, w: &syncWriter{w: o.w}}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// JSON reports whether output is machine readable
func (o *Output) JSON() bool {
	return o.format == "json"
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.JSON() {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.JSON() {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.JSON() {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

// PrintFrame outputs one server frame received during play. JSON output is
// one frame per line.
func (o *Output) PrintFrame(f protocol.Frame, self string) {
	if o.JSON() {
		data, _ := json.Marshal(f)
		fmt.Fprintln(o.w, string(data))
		return
	}
	fmt.Fprint(o.w, describeFrame(f, self))
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printHealthResult(v)
	case RoomList:
		o.printRoomList(v)
	case Room:
		o.printRoom(v)
	case RoomCode:
		o.printRoomCode(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status        string `json:"status"`
	Connections   int    `json:"connections"`
	Players       int    `json:"players"`
	PendingGraces int    `json:"pending_graces"`
	Watchers      int    `json:"watchers"`
}

// RoomSummary response type
type RoomSummary struct {
	Code       string `json:"code"`
	Phase      string `json:"phase"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Host       string `json:"host,omitempty"`
}

// RoomList response type
type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

// Room response type: a room snapshot plus its join link
type Room struct {
	protocol.RoomSnapshot
	JoinURL string `json:"join_url"`
}

// RoomCode response type
type RoomCode struct {
	Code    string `json:"code"`
	JoinURL string `json:"join_url"`
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	fmt.Fprintf(o.w, "Connections: %d\n", h.Connections)
	fmt.Fprintf(o.w, "Players: %d\n", h.Players)
	if h.PendingGraces > 0 {
		fmt.Fprintf(o.w, "Pending removals: %d\n", h.PendingGraces)
	}
	if h.Watchers > 0 {
		fmt.Fprintf(o.w, "Spectators: %d\n", h.Watchers)
	}
}

func (o *Output) printRoomList(l RoomList) {
	if len(l.Rooms) == 0 {
		fmt.Fprintln(o.w, "No rooms")
		return
	}
	for _, r := range l.Rooms {
		fmt.Fprintf(o.w, "%-12s %-10s %d/%d  host: %s\n", r.Code, r.Phase, r.Players, r.MaxPlayers, r.Host)
	}
}

func (o *Output) printRoom(r Room) {
	fmt.Fprint(o.w, formatRoom(r.RoomSnapshot, ""))
	if r.JoinURL != "" {
		fmt.Fprintf(o.w, "Join: %s\n", r.JoinURL)
	}
}

func (o *Output) printRoomCode(c RoomCode) {
	fmt.Fprintf(o.w, "Room code: %s\n", c.Code)
	fmt.Fprintf(o.w, "Join: %s\n", c.JoinURL)
}

// formatRoom renders a snapshot as a few lines of text, marking self
func formatRoom(s protocol.RoomSnapshot, self string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s [%s] %d/%d\n", s.RoomID, s.Phase, len(s.Players), s.MaxPlayers)
	for _, p := range s.Players {
		var tags []string
		if p.IsHost {
			tags = append(tags, "host")
		}
		if p.IsReady {
			tags = append(tags, "ready")
		}
		if !p.Connected {
			tags = append(tags, "reconnecting")
		}
		if s.PotatoHolderID != nil && *s.PotatoHolderID == p.ID {
			tags = append(tags, "HAS THE POTATO")
		}
		marker := "  "
		if p.ID == self {
			marker = "> "
		}
		line := marker + p.Name
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
