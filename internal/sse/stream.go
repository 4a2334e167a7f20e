package sse

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/mcoot/hotpotato/internal/protocol"
)

// Stream is one event-stream subscriber. It satisfies session.Sink.
type Stream struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewStream creates a Stream buffering up to size events
func NewStream(size int) *Stream {
	return &Stream{
		send: make(chan []byte, size),
		done: make(chan struct{}),
	}
}

// Send queues msg as an event named after its type
func (s *Stream) Send(msg protocol.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- formatMessage(string(msg.MessageType()), string(data)):
		return true
	default:
		return false
	}
}

// Close ends the stream after queued events are written
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

// formatMessage renders one event. Every line of data gets its own
// "data: " prefix.
func formatMessage(event, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits on \n, dropping \r and a trailing empty line
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
