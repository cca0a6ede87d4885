package hostsim

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmulateKeyTracksDownState(t *testing.T) {
	h := New(nil)
	h.EmulateKey(1, 2, true)
	assert.Equal(t, [][2]uint8{{1, 2}}, h.KeysDown())

	h.EmulateKey(1, 2, false)
	assert.Empty(t, h.KeysDown())
}

func TestModsAndLayerRoundTrip(t *testing.T) {
	h := New(nil)
	assert.Equal(t, uint8(0), h.GetMods())
	assert.Equal(t, uint8(0), h.GetLayer())

	h.SetMods(5)
	h.SetLayer(2)
	assert.Equal(t, uint8(5), h.GetMods())
	assert.Equal(t, uint8(2), h.GetLayer())
}

func TestNowMSIsMonotonicNonNegative(t *testing.T) {
	h := New(nil)
	a := h.NowMS()
	b := h.NowMS()
	assert.GreaterOrEqual(t, b, a)
}

func TestTraceWritesHumanReadableLines(t *testing.T) {
	var buf bytes.Buffer
	h := New(&buf)

	h.EmulateKey(0, 0, true)
	h.SetMods(1)
	h.SetLayer(1)

	out := buf.String()
	assert.True(t, strings.Contains(out, "key (0,0) down"))
	assert.True(t, strings.Contains(out, fmt.Sprintf("mods set to %#02x", uint8(1))))
	assert.True(t, strings.Contains(out, "layer set to 1"))
}

func TestNilTraceIsSilent(t *testing.T) {
	h := New(nil)
	assert.NotPanics(t, func() {
		h.EmulateKey(0, 0, true)
		h.RegisterCode(5)
		h.UnregisterCode(5)
	})
}
