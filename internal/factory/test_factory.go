package factory

import (
	"time"

	"github.com/mcoot/hotpotato/internal/dependencies/mocks"
	"github.com/mcoot/hotpotato/internal/services/room"
	"github.com/mcoot/hotpotato/internal/session"
	"github.com/mcoot/hotpotato/internal/storage/memory"
	"github.com/mcoot/hotpotato/internal/testutil"
	"github.com/mcoot/hotpotato/internal/ws"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	MockIdentity *mocks.MockIdentity
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// The sweep ticker is effectively disabled; call Engine.Sweep after moving
// the clock.
func NewTestApp() *TestApp {
	return NewTestAppWithOptions(room.DefaultOptions())
}

// NewTestAppWithOptions is NewTestApp with custom round pacing
func NewTestAppWithOptions(opts room.Options) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockIdentity := mocks.NewMockIdentity()

	sessionCfg := session.DefaultConfig()
	sessionCfg.SweepInterval = time.Hour

	app := newWithDependencies(store, mockClock, mockRandom, mockIdentity, Config{
		RoomOptions:     opts,
		SessionConfig:   sessionCfg,
		WebSocketConfig: ws.DefaultConfig(),
	}, testutil.NopLogger())

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockRandom:   mockRandom,
		MockIdentity: mockIdentity,
	}
}
