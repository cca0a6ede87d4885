package queue

import (
	"testing"

	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/keystate"
	"github.com/modtap/smtd/internal/modlayer"
	"github.com/modtap/smtd/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	clock   *scheduler.Clock
	mods    uint8
	layer   uint8
	calls   []string
}

func newFakeHost(clock *scheduler.Clock) *fakeHost {
	return &fakeHost{clock: clock}
}

func (h *fakeHost) EmulateKey(row, col uint8, pressed bool) {
	sym := "up"
	if pressed {
		sym = "down"
	}
	h.calls = append(h.calls, "emulate("+posStr(row, col)+","+sym+",mods="+itoa(h.mods)+")")
}
func (h *fakeHost) RegisterCode(kc uint16) {
	h.calls = append(h.calls, "register("+itoa16(kc)+",mods="+itoa(h.mods)+")")
}
func (h *fakeHost) UnregisterCode(kc uint16) {
	h.calls = append(h.calls, "unregister("+itoa16(kc)+",mods="+itoa(h.mods)+")")
}
func (h *fakeHost) GetMods() uint8    { return h.mods }
func (h *fakeHost) SetMods(m uint8)   { h.mods = m }
func (h *fakeHost) GetLayer() uint8   { return h.layer }
func (h *fakeHost) SetLayer(l uint8)  { h.layer = l }
func (h *fakeHost) NowMS() uint32     { return h.clock.NowMS() }

func posStr(row, col uint8) string { return itoa(row) + "," + itoa(col) }
func itoa(v uint8) string {
	if v == 0 {
		return "0"
	}
	digits := "0123456789"
	var b []byte
	for v > 0 {
		b = append([]byte{digits[v%10]}, b...)
		v /= 10
	}
	return string(b)
}
func itoa16(v uint16) string {
	digits := "0123456789"
	if v == 0 {
		return "0"
	}
	var b []byte
	for v > 0 {
		b = append([]byte{digits[v%10]}, b...)
		v /= 10
	}
	return string(b)
}

func setup(t *testing.T, propagate bool) (*ActiveQueue, *fakeHost, *scheduler.Fake) {
	t.Helper()
	clock := scheduler.NewClock()
	host := newFakeHost(clock)
	fake := scheduler.NewFake(clock)
	arb := modlayer.New(host)
	q := New(Config{
		Host:                 host,
		Scheduler:            fake,
		Arbiter:              arb,
		Capacity:             4,
		GlobalModPropagation: propagate,
	})
	return q, host, fake
}

func TestSmartTapIdempotence(t *testing.T) {
	q, host, sched := setup(t, false)
	pos := keystate.KeyPos{Row: 0, Col: 1}
	q.EnqueueSmart(pos, 10, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0)
	q.ReleasePhysical(pos, 10)
	sched.FireAll()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, uint8(0), host.GetMods())
	assert.Contains(t, host.calls, "emulate(0,1,down,mods=0)")
	assert.Contains(t, host.calls, "emulate(0,1,up,mods=0)")
}

func TestSmartHoldIdempotence(t *testing.T) {
	q, host, sched := setup(t, false)
	pos := keystate.KeyPos{Row: 0, Col: 1}
	q.EnqueueSmart(pos, 10, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0)
	sched.FireAll() // TAP_TIMEOUT elapses -> HOLD
	assert.Equal(t, uint8(1), host.GetMods())

	q.ReleasePhysical(pos, 300)
	sched.FireAll() // REL_TIMEOUT elapses -> pop
	assert.Equal(t, uint8(0), host.GetMods())
	assert.Equal(t, 0, q.Len())

	for _, c := range host.calls {
		assert.NotContains(t, c, "emulate(")
	}
}

func TestLTPlusMTPlusK1CascadesOnBothHolds(t *testing.T) {
	q, host, sched := setup(t, false)
	lt1 := keystate.KeyPos{Row: 1, Col: 0}
	mt1 := keystate.KeyPos{Row: 1, Col: 1}
	k1 := keystate.KeyPos{Row: 1, Col: 2}

	q.EnqueueSmart(lt1, 20, behavior.Behavior{Kind: behavior.LT, Layer: 1}, 0)
	q.InterferingKeyPressed(0, mt1)
	q.EnqueueSmart(mt1, 21, behavior.Behavior{Kind: behavior.MT, ModMask: 4}, 0)
	q.InterferingKeyPressed(0, k1)
	q.EnqueuePlainPassThrough(k1, 22, 0)

	require.Equal(t, 3, q.Len())
	assert.Empty(t, host.calls, "K1 must not emit until both LT1 and MT1 resolve")

	sched.FireAll() // both TAP_TIMEOUTs elapse -> HOLD, cascades K1's press

	assert.Equal(t, uint8(1), host.GetLayer())
	assert.Equal(t, uint8(4), host.GetMods())
	assert.Contains(t, host.calls, "emulate(1,2,down,mods=4)")

	q.ReleasePhysical(k1, 250)
	q.ReleasePhysical(mt1, 260)
	q.ReleasePhysical(lt1, 270)
	sched.FireAll()

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, uint8(0), host.GetMods())
	assert.Equal(t, uint8(0), host.GetLayer())
}

func TestNonEagerInterferenceBuffersBehindHead(t *testing.T) {
	q, host, _ := setup(t, false)
	s := keystate.KeyPos{Row: 0, Col: 0}
	k2 := keystate.KeyPos{Row: 0, Col: 1}

	q.EnqueueSmart(s, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0)
	q.InterferingKeyPressed(5, k2)
	q.EnqueuePlainPassThrough(k2, 2, 5)

	assert.Equal(t, 2, q.Len())
	assert.Empty(t, host.calls)
}

func TestEagerInterferencePromotesAndCascades(t *testing.T) {
	q, host, _ := setup(t, false)
	s := keystate.KeyPos{Row: 0, Col: 0}
	k2 := keystate.KeyPos{Row: 0, Col: 1}

	q.EnqueueSmart(s, 1, behavior.Behavior{Kind: behavior.MTE, ModMask: 2}, 0)
	q.InterferingKeyPressed(5, k2)
	q.EnqueuePlainPassThrough(k2, 2, 5)

	assert.Equal(t, uint8(2), host.GetMods())
	assert.Contains(t, host.calls, "emulate(0,1,down,mods=2)")
}

func TestQueueOverflowIsCallerResponsibility(t *testing.T) {
	q, _, _ := setup(t, false)
	for i := 0; i < 4; i++ {
		pos := keystate.KeyPos{Row: 0, Col: uint8(i)}
		require.False(t, q.Full())
		q.EnqueueSmart(pos, uint16(i), behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0)
	}
	assert.True(t, q.Full())
}

func TestResetClearsQueueAndCancelsTimers(t *testing.T) {
	q, _, sched := setup(t, false)
	pos := keystate.KeyPos{Row: 0, Col: 0}
	q.EnqueueSmart(pos, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0)
	require.Equal(t, 1, sched.Pending())

	q.Reset(0)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, sched.Pending())
}

func TestGlobalModPropagationTapBehindPromotedHoldCarriesMod(t *testing.T) {
	q, host, sched := setup(t, true)
	s := keystate.KeyPos{Row: 0, Col: 0}
	l := keystate.KeyPos{Row: 0, Col: 1}

	q.EnqueueSmart(s, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 8}, 0)
	q.InterferingKeyPressed(1, l)
	q.EnqueueSmart(l, 2, behavior.Behavior{Kind: behavior.MT, ModMask: 0}, 1)
	// L taps quickly while S is still in TOUCH: L's tap is stashed, not
	// emitted, because S ahead of it blocks.
	q.ReleasePhysical(l, 2)

	assert.Empty(t, host.calls, "L must not emit while S (ahead) is still in TOUCH")

	// Now S promotes to hold via TAP_TIMEOUT; L is unblocked and its tap
	// emits fresh, already reflecting S's mod — propagation has nothing to
	// patch here since nothing was emitted before the promotion.
	sched.FireAll()

	assert.Contains(t, host.calls, "emulate(0,1,down,mods=8)")
}
