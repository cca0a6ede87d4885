package smtd

import (
	"sync"

	"github.com/modtap/smtd/internal/scheduler"
)

// HostCall is one recorded call against a MockHost, for assertions in
// tests that want raw call-by-call detail rather than the Engine's own
// higher-level History().
type HostCall struct {
	Method string // "EmulateKey", "RegisterCode", "UnregisterCode", "SetMods", "SetLayer"
	Row    uint8
	Col    uint8
	Keycode uint16
	Pressed bool
	Value  uint8
}

// MockHost is a test double implementing interfaces.HostAdapter, recording
// every emit and every mods/layer write it receives (reads and NowMS are
// not recorded) and driven by a shared scheduler.Clock so its
// NowMS() agrees with a scheduler.Fake used alongside it.
type MockHost struct {
	mu    sync.Mutex
	clock *scheduler.Clock
	mods  uint8
	layer uint8
	Calls []HostCall
}

// NewMockHost creates a MockHost driven by clock. Pass the same Clock used
// to construct the scheduler.Fake for an Engine under test.
func NewMockHost(clock *scheduler.Clock) *MockHost {
	if clock == nil {
		clock = scheduler.NewClock()
	}
	return &MockHost{clock: clock}
}

func (m *MockHost) record(c HostCall) {
	m.Calls = append(m.Calls, c)
}

// EmulateKey implements interfaces.HostAdapter.
func (m *MockHost) EmulateKey(row, col uint8, pressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(HostCall{Method: "EmulateKey", Row: row, Col: col, Pressed: pressed})
}

// RegisterCode implements interfaces.HostAdapter.
func (m *MockHost) RegisterCode(kc uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(HostCall{Method: "RegisterCode", Keycode: kc, Pressed: true})
}

// UnregisterCode implements interfaces.HostAdapter.
func (m *MockHost) UnregisterCode(kc uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(HostCall{Method: "UnregisterCode", Keycode: kc, Pressed: false})
}

// GetMods implements interfaces.HostAdapter.
func (m *MockHost) GetMods() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mods
}

// SetMods implements interfaces.HostAdapter.
func (m *MockHost) SetMods(mods uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mods = mods
	m.record(HostCall{Method: "SetMods", Value: mods})
}

// GetLayer implements interfaces.HostAdapter.
func (m *MockHost) GetLayer() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layer
}

// SetLayer implements interfaces.HostAdapter.
func (m *MockHost) SetLayer(layer uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layer = layer
	m.record(HostCall{Method: "SetLayer", Value: layer})
}

// NowMS implements interfaces.HostAdapter.
func (m *MockHost) NowMS() uint32 {
	return m.clock.NowMS()
}

// Reset clears recorded calls and mods/layer state, without touching the
// shared clock (the scheduler.Fake owns that).
func (m *MockHost) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.mods = 0
	m.layer = 0
}
