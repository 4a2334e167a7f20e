package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/hotpotato/internal/dependencies/identity"
)

// MockIdentity hands out predictable ids: queued values first, then p1, p2, ...
type MockIdentity struct {
	mu     sync.Mutex
	queued []string
	next   int
}

// Ensure MockIdentity implements Generator
var _ identity.Generator = (*MockIdentity)(nil)

// NewMockIdentity creates a new MockIdentity
func NewMockIdentity() *MockIdentity {
	return &MockIdentity{}
}

// NewID returns the next queued id, or a sequential one
func (g *MockIdentity) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id
	}
	g.next++
	return fmt.Sprintf("p%d", g.next)
}

// QueueID adds ids to be returned before the sequential fallback
func (g *MockIdentity) QueueID(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued = append(g.queued, ids...)
}
