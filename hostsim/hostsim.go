// Package hostsim provides a standard in-memory interfaces.HostAdapter for
// demos and manual testing, the analogue of a real firmware's matrix
// scanner and HID report generator.
package hostsim

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Host is a RAM-based HostAdapter: it tracks the live mods/layer bytes and
// which (row, col) positions are currently down, and writes a trace line
// for every emitted action to an optional writer. NowMS reports real
// elapsed wall-clock time since the Host was created, so it agrees with a
// scheduler.Real running alongside it.
type Host struct {
	mu sync.Mutex

	mods  uint8
	layer uint8
	down  map[[2]uint8]bool

	start time.Time

	trace io.Writer
}

// New creates a Host with mods=0, layer=0, and every key up. If trace is
// non-nil, every emitted action is written to it as a human-readable line.
func New(trace io.Writer) *Host {
	return &Host{down: make(map[[2]uint8]bool), trace: trace, start: time.Now()}
}

// EmulateKey implements interfaces.HostAdapter.
func (h *Host) EmulateKey(row, col uint8, pressed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.down[[2]uint8{row, col}] = pressed
	h.logf("key (%d,%d) %s  mods=%#02x layer=%d", row, col, downUp(pressed), h.mods, h.layer)
}

// RegisterCode implements interfaces.HostAdapter.
func (h *Host) RegisterCode(kc uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logf("code 0x%04x down   mods=%#02x layer=%d", kc, h.mods, h.layer)
}

// UnregisterCode implements interfaces.HostAdapter.
func (h *Host) UnregisterCode(kc uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logf("code 0x%04x up     mods=%#02x layer=%d", kc, h.mods, h.layer)
}

// GetMods implements interfaces.HostAdapter.
func (h *Host) GetMods() uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mods
}

// SetMods implements interfaces.HostAdapter.
func (h *Host) SetMods(mods uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mods = mods
	h.logf("mods set to %#02x", mods)
}

// GetLayer implements interfaces.HostAdapter.
func (h *Host) GetLayer() uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.layer
}

// SetLayer implements interfaces.HostAdapter.
func (h *Host) SetLayer(layer uint8) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.layer = layer
	h.logf("layer set to %d", layer)
}

// NowMS implements interfaces.HostAdapter.
func (h *Host) NowMS() uint32 {
	return uint32(time.Since(h.start).Milliseconds())
}

// KeysDown returns the set of positions currently recorded as pressed, for
// a demo or test that wants to assert on the live matrix state.
func (h *Host) KeysDown() [][2]uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][2]uint8
	for pos, down := range h.down {
		if down {
			out = append(out, pos)
		}
	}
	return out
}

func (h *Host) logf(format string, args ...any) {
	if h.trace == nil {
		return
	}
	fmt.Fprintf(h.trace, format+"\n", args...)
}

func downUp(pressed bool) string {
	if pressed {
		return "down"
	}
	return "up"
}
