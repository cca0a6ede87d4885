package keystate

import (
	"testing"

	"github.com/modtap/smtd/internal/behavior"
	"github.com/stretchr/testify/assert"
)

func TestNewArmsTapTimeout(t *testing.T) {
	ks, out := New(KeyPos{0, 1}, 42, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0, 0, 0)
	assert.Equal(t, TOUCH, ks.State)
	assert.Equal(t, TimeoutTap, out.ArmTimeout)
	assert.Equal(t, uint32(200), out.ArmDelayMS)
}

func TestTouchReleaseEmitsTapAndArmsFollow(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT}, 0, 0, 0)
	out := ks.ReleasePhysical(50)
	assert.Equal(t, TAP, ks.State)
	assert.True(t, out.EmitTap)
	assert.Equal(t, uint8(1), out.EmitCount)
	assert.True(t, out.CancelPending)
	assert.Equal(t, TimeoutFollow, out.ArmTimeout)
}

func TestTapTimeoutPromotesToHold(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 0x2}, 0, 0, 0)
	out := ks.Timeout(TimeoutTap, 200)
	assert.Equal(t, HOLD, ks.State)
	assert.True(t, ks.Promoted)
	assert.True(t, out.PromoteHold)
	assert.True(t, out.ReplaySuppressed)
}

func TestHoldReleaseArmsRelTimeout(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 0x2}, 0, 0, 0)
	ks.Timeout(TimeoutTap, 200)
	out := ks.ReleasePhysical(250)
	assert.Equal(t, RELEASE, ks.State)
	assert.True(t, out.ReleaseHold)
	assert.Equal(t, TimeoutRel, out.ArmTimeout)
}

func TestRelTimeoutPops(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 0x2}, 0, 0, 0)
	ks.Timeout(TimeoutTap, 200)
	ks.ReleasePhysical(250)
	out := ks.Timeout(TimeoutRel, 300)
	assert.Equal(t, NONE, ks.State)
	assert.True(t, out.Pop)
}

func TestFollowTimeoutFinalizesNonCollapsingTap(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT}, 0, 0, 0)
	ks.ReleasePhysical(10)
	out := ks.Timeout(TimeoutFollow, 210)
	assert.Equal(t, NONE, ks.State)
	assert.True(t, out.Pop)
	assert.False(t, out.EmitTap, "tap already emitted on release, should not double-emit")
}

func TestSameKeyPressedEntersTHL(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT}, 0, 0, 0)
	ks.ReleasePhysical(10)
	out := ks.SameKeyPressed(30)
	assert.Equal(t, THL, ks.State)
	assert.True(t, out.CancelPending)
	assert.Equal(t, TimeoutTap, out.ArmTimeout)
}

func TestTHLReleaseEmitsAnotherTap(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT}, 0, 0, 0)
	ks.ReleasePhysical(10)
	ks.SameKeyPressed(30)
	out := ks.ReleasePhysical(60)
	assert.Equal(t, TAP, ks.State)
	assert.True(t, out.EmitTap)
	assert.Equal(t, uint8(2), ks.TapCount)
}

func TestTHLTapTimeoutPromotesToHold(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0, 0, 0)
	ks.ReleasePhysical(10)
	ks.SameKeyPressed(30)
	out := ks.Timeout(TimeoutTap, 230)
	assert.Equal(t, HOLD, ks.State)
	assert.True(t, out.PromoteHold)
}

func TestMultiTapCollapsesAtSequenceLength(t *testing.T) {
	b := behavior.Behavior{Kind: behavior.MT_ON_MKEY, MacroKC: 777, TapSequenceLen: 2}
	ks, _ := New(KeyPos{}, 1, b, 0, 0, 0)

	out := ks.ReleasePhysical(10)
	assert.False(t, out.EmitTap, "should not emit on first tap of a collapsing run")
	assert.Equal(t, TAP, ks.State)

	ks.SameKeyPressed(30)
	out = ks.ReleasePhysical(60)
	assert.True(t, out.EmitTap)
	assert.Equal(t, uint8(2), out.EmitCount)
	assert.True(t, out.Pop)
	assert.Equal(t, NONE, ks.State)
}

func TestMultiTapFollowTimeoutCollapsesPartialRun(t *testing.T) {
	b := behavior.Behavior{Kind: behavior.MT_ON_MKEY, MacroKC: 777, TapSequenceLen: 3}
	ks, _ := New(KeyPos{}, 1, b, 0, 0, 0)
	ks.ReleasePhysical(10)
	ks.SameKeyPressed(30)
	ks.ReleasePhysical(60) // tap_count = 2, still below 3

	out := ks.Timeout(TimeoutFollow, 260)
	assert.True(t, out.EmitTap)
	assert.Equal(t, uint8(2), out.EmitCount)
	assert.True(t, out.Pop)
}

func TestEagerInterferenceLKeyPromotesImmediately(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MTE, ModMask: 4}, 0, 0, 0)
	out := ks.InterferingKeyPressed(20)
	assert.Equal(t, HOLD, ks.State)
	assert.True(t, out.PromoteHold)
	assert.True(t, out.ReplaySuppressed)
}

func TestNonEagerInterferenceIsNoop(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 4}, 0, 0, 0)
	out := ks.InterferingKeyPressed(20)
	assert.Equal(t, TOUCH, ks.State)
	assert.False(t, out.PromoteHold)
}

func TestForceFlushTHLBecomesCompletedTap(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT, ModMask: 1}, 0, 0, 0)
	ks.ReleasePhysical(10)
	ks.SameKeyPressed(30)
	require := assert.New(t)
	require.Equal(THL, ks.State)

	out := ks.ForceFlush(40)
	require.Equal(NONE, ks.State)
	require.True(out.EmitTap)
	require.True(out.Pop)
}

func TestForceFlushTouchPopsWithoutEmission(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT}, 0, 0, 0)
	out := ks.ForceFlush(5)
	assert.Equal(t, NONE, ks.State)
	assert.True(t, out.Pop)
	assert.False(t, out.EmitTap)
}

func TestStaleTimeoutAfterStateAdvancedIsNoop(t *testing.T) {
	ks, _ := New(KeyPos{}, 1, behavior.Behavior{Kind: behavior.MT}, 0, 0, 0)
	ks.ReleasePhysical(10) // now in TAP, TAP_TIMEOUT from TOUCH is stale
	out := ks.Timeout(TimeoutTap, 210)
	assert.Equal(t, TAP, ks.State, "stale TAP_TIMEOUT must not affect TAP state")
	assert.Equal(t, Outcome{}, out)
}
