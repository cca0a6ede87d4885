package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeScheduleAndFire(t *testing.T) {
	f := NewFake(nil)
	fired := false
	token := f.Schedule(100, func(tok Token, arg any) {
		fired = true
		assert.Equal(t, "hello", arg)
	}, "hello")

	assert.Equal(t, 1, f.Pending())
	f.Fire(token)
	assert.True(t, fired)
	assert.Equal(t, 0, f.Pending())
}

func TestFakeCancelPreventsAdvanceFire(t *testing.T) {
	f := NewFake(nil)
	calls := 0
	token := f.Schedule(50, func(tok Token, arg any) { calls++ }, nil)
	f.Cancel(token)
	f.Advance(100)
	assert.Equal(t, 0, calls)
}

func TestFakeAdvanceOnlyFiresDue(t *testing.T) {
	f := NewFake(nil)
	var order []string
	f.Schedule(100, func(tok Token, arg any) { order = append(order, "a") }, nil)
	f.Schedule(200, func(tok Token, arg any) { order = append(order, "b") }, nil)

	f.Advance(150)
	assert.Equal(t, []string{"a"}, order)

	f.Advance(100)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestFakeOrderingTieBreakIsScheduleOrder(t *testing.T) {
	f := NewFake(nil)
	var order []string
	f.Schedule(100, func(tok Token, arg any) { order = append(order, "first") }, nil)
	f.Schedule(100, func(tok Token, arg any) { order = append(order, "second") }, nil)

	f.Advance(100)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestFakeFireAllRunsEverythingInDeadlineOrder(t *testing.T) {
	f := NewFake(nil)
	var order []int
	f.Schedule(200, func(tok Token, arg any) { order = append(order, 200) }, nil)
	f.Schedule(50, func(tok Token, arg any) { order = append(order, 50) }, nil)
	f.Schedule(100, func(tok Token, arg any) { order = append(order, 100) }, nil)

	f.FireAll()
	assert.Equal(t, []int{50, 100, 200}, order)
	assert.Equal(t, 0, f.Pending())
}

func TestFakeFireAllDrainsCascadingReArms(t *testing.T) {
	f := NewFake(nil)
	var order []string
	var second Token
	f.Schedule(50, func(tok Token, arg any) {
		order = append(order, "first")
		second = f.Schedule(10, func(tok Token, arg any) {
			order = append(order, "second")
		}, nil)
	}, nil)

	f.FireAll()
	assert.Equal(t, []string{"first", "second"}, order)
	assert.False(t, second.Zero())
}

func TestFakeResetClearsClockAndPending(t *testing.T) {
	f := NewFake(nil)
	f.Schedule(50, func(tok Token, arg any) {}, nil)
	f.Advance(10)

	f.Reset()
	assert.Equal(t, 0, f.Pending())
	assert.Equal(t, uint32(0), f.clock.NowMS())
}

func TestFakeSharedClockWithHost(t *testing.T) {
	clock := NewClock()
	f := NewFake(clock)
	require.Equal(t, uint32(0), clock.NowMS())
	f.Advance(42)
	assert.Equal(t, uint32(42), clock.NowMS())
}

func TestStaleTokenAfterCancelIsNoop(t *testing.T) {
	f := NewFake(nil)
	token := f.Schedule(10, func(tok Token, arg any) { t.Fatal("should not fire") }, nil)
	f.Cancel(token)
	f.Fire(token)
	f.FireAll()
}
