// Package scheduler provides the deferred-callback abstraction the engine
// drives its timing decisions through. The engine owns no threads and never
// blocks; all time-driven transitions arrive as a Scheduler callback on the
// same logical execution context as input events (spec.md §5).
package scheduler

import "github.com/google/uuid"

// Token identifies one armed deferred callback. It is opaque to callers;
// equality is the only operation they should rely on (for matching a fired
// callback against the state it was armed for, per spec.md §5's
// cancellation rule).
type Token struct {
	id uuid.UUID
}

// Zero reports whether this is the unset Token value.
func (t Token) Zero() bool {
	return t.id == uuid.Nil
}

func (t Token) String() string {
	return t.id.String()
}

func newToken() Token {
	return Token{id: uuid.New()}
}

// Callback is invoked when an armed deferred call fires. arg is whatever
// was passed to Schedule.
type Callback func(token Token, arg any)

// Scheduler schedules and cancels deferred callbacks. Cancellation is not
// guaranteed to be synchronous with the fire path: a callback may still run
// for a token that was just cancelled, so callbacks must re-check on entry
// that their owning state still expects that exact token (spec.md §5).
type Scheduler interface {
	// Schedule arms a callback to run delayMS from now and returns a Token
	// identifying it.
	Schedule(delayMS uint32, cb Callback, arg any) Token

	// Cancel disarms a previously scheduled callback. Canceling an unknown
	// or already-fired token is a no-op.
	Cancel(token Token)
}

// Clock is a small shared monotonic millisecond counter used to keep a
// Scheduler and a HostAdapter's NowMS in lockstep in tests, where both must
// agree on "now" without a real wall clock.
type Clock struct {
	ms uint32
}

// NewClock creates a Clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NowMS returns the current simulated time.
func (c *Clock) NowMS() uint32 {
	return c.ms
}

// Advance moves the simulated clock forward by deltaMS.
func (c *Clock) Advance(deltaMS uint32) {
	c.ms += deltaMS
}

// Set pins the simulated clock to an absolute value, used when a test wants
// to jump directly to a deadline.
func (c *Clock) Set(ms uint32) {
	c.ms = ms
}
