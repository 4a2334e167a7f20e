package testutil

import (
	"sync"

	"github.com/mcoot/hotpotato/internal/protocol"
)

// RecordingSink collects outbound messages in memory.
// Set Full to simulate a connection whose buffer is exhausted.
type RecordingSink struct {
	mu       sync.Mutex
	messages []protocol.Message
	closed   bool
	Full     bool
}

// NewRecordingSink creates an empty RecordingSink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Send records msg unless the sink is full or closed
func (s *RecordingSink) Send(msg protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Full || s.closed {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

// Close marks the sink closed
func (s *RecordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetFull toggles the simulated full buffer
func (s *RecordingSink) SetFull(full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Full = full
}

// Messages returns everything received so far
func (s *RecordingSink) Messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Types returns the type of every message received so far
func (s *RecordingSink) Types() []protocol.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Type, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.MessageType()
	}
	return out
}

// Last returns the most recent message, or nil
func (s *RecordingSink) Last() protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

// Reset forgets all recorded messages
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
