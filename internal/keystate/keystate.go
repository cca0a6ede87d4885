// Package keystate implements the per-key finite state machine that
// disambiguates a single smart key's press/release stream into a tap, a
// hold, or a tap-then-hold, per spec §4.2. A KeyState never touches the
// host adapter, the scheduler, or any other KeyState directly — it mutates
// its own fields and returns an Outcome describing what the caller (the
// active queue) must do. This keeps the cyclic reference design note of
// spec §9 resolved at the package boundary: the queue owns the arena of
// KeyStates and all cross-key bookkeeping, keeping KeyState itself a plain
// value-like type.
package keystate

import (
	"fmt"

	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/scheduler"
)

// KeyPos is the physical identity of a key: (row, col).
type KeyPos struct {
	Row uint8
	Col uint8
}

func (p KeyPos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// State is one of the six FSM states from spec §4.2.
type State int

const (
	NONE State = iota
	TOUCH
	TAP
	THL
	HOLD
	RELEASE
)

func (s State) String() string {
	switch s {
	case NONE:
		return "NONE"
	case TOUCH:
		return "TOUCH"
	case TAP:
		return "TAP"
	case THL:
		return "THL"
	case HOLD:
		return "HOLD"
	case RELEASE:
		return "RELEASE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TimeoutKind distinguishes which of the four named timeouts a pending
// scheduler token represents. spec §3 models pending_timeout as a single
// optional token per KeyState; TimeoutKind is the label for that one slot.
type TimeoutKind int

const (
	TimeoutNone TimeoutKind = iota
	TimeoutTap
	TimeoutSeq
	TimeoutFollow
	TimeoutRel
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutTap:
		return "TAP_TIMEOUT"
	case TimeoutSeq:
		return "SEQ_TIMEOUT"
	case TimeoutFollow:
		return "FOLLOW_TIMEOUT"
	case TimeoutRel:
		return "REL_TIMEOUT"
	default:
		return "NONE"
	}
}

// Outcome is what a KeyState transition asks its owning queue to do. A
// zero Outcome means "no side effect needed beyond the state change
// already applied."
type Outcome struct {
	// CancelPending asks the caller to cancel ks.PendingTimeout (if any)
	// before arming a new one.
	CancelPending bool

	// ArmTimeout, when non-zero, asks the caller to schedule a new
	// deferred callback and store the resulting token as the new
	// PendingTimeout.
	ArmTimeout   TimeoutKind
	ArmDelayMS   uint32

	// EmitTap asks the caller to emit a tap (or a collapsed multi-tap run)
	// for this key using its snapshot mods/layer, combined with whatever
	// is currently contributed by earlier queue entries.
	EmitTap    bool
	EmitCount  uint8

	// PromoteHold asks the caller to apply this key's mod/layer to global
	// state and replay any suppressed events buffered behind it.
	PromoteHold      bool
	ReplaySuppressed bool

	// ReleaseHold asks the caller to unapply this key's mod/layer from
	// global state.
	ReleaseHold bool

	// Pop asks the caller to remove this KeyState from the active queue
	// (it has reached NONE).
	Pop bool
}

// KeyState is one currently-active smart key instance.
type KeyState struct {
	Pos      KeyPos
	Keycode  uint16
	Behavior behavior.Behavior

	State State

	TapCount uint8

	PressTimeMS   uint32
	ReleaseTimeMS uint32

	PendingTimeout scheduler.Token
	PendingKind    TimeoutKind

	SnapshotMods  uint8
	SnapshotLayer uint8

	Promoted   bool
	SavedLayer uint8
}

// New constructs a KeyState in TOUCH and the Outcome to arm its initial
// TAP_TIMEOUT.
func New(pos KeyPos, keycode uint16, b behavior.Behavior, nowMS uint32, snapshotMods, snapshotLayer uint8) (*KeyState, Outcome) {
	ks := &KeyState{
		Pos:           pos,
		Keycode:       keycode,
		Behavior:      b,
		State:         TOUCH,
		PressTimeMS:   nowMS,
		SnapshotMods:  snapshotMods,
		SnapshotLayer: snapshotLayer,
	}
	return ks, Outcome{
		ArmTimeout: TimeoutTap,
		ArmDelayMS: tapTimeoutMS(b),
	}
}

func tapTimeoutMS(b behavior.Behavior) uint32 {
	if b.TapTimeoutMS != 0 {
		return b.TapTimeoutMS
	}
	return 200
}

func seqTimeoutMS(b behavior.Behavior) uint32 {
	if b.SeqTimeoutMS != 0 {
		return b.SeqTimeoutMS
	}
	return 100
}

func followTimeoutMS(b behavior.Behavior) uint32 {
	if b.FollowTimeoutMS != 0 {
		return b.FollowTimeoutMS
	}
	return 200
}

func relTimeoutMS(b behavior.Behavior) uint32 {
	if b.RelTimeoutMS != 0 {
		return b.RelTimeoutMS
	}
	return 50
}

// collapses reports whether this behavior batches multiple taps into one
// emission (spec §4.4).
func (ks *KeyState) collapses() bool {
	return ks.Behavior.TapSequenceLen > 1
}

// ReleasePhysical handles the RELEASE_PHYSICAL event (spec §4.2's table).
// Its effect depends on the state ks is in when the physical release
// arrives.
func (ks *KeyState) ReleasePhysical(nowMS uint32) Outcome {
	ks.ReleaseTimeMS = nowMS

	switch ks.State {
	case TOUCH:
		ks.TapCount = 1
		ks.State = TAP
		emit := !ks.collapses()
		return Outcome{
			CancelPending: true,
			ArmTimeout:    TimeoutFollow,
			ArmDelayMS:    followTimeoutMS(ks.Behavior),
			EmitTap:       emit,
			EmitCount:     1,
		}

	case THL:
		ks.TapCount++
		ks.State = TAP
		if ks.collapses() && ks.TapCount >= ks.Behavior.TapSequenceLen {
			// Sequence run complete: collapse now instead of waiting for
			// the follow timer.
			ks.State = NONE
			return Outcome{
				CancelPending: true,
				EmitTap:       true,
				EmitCount:     ks.TapCount,
				Pop:           true,
			}
		}
		emit := !ks.collapses()
		return Outcome{
			CancelPending: true,
			ArmTimeout:    TimeoutFollow,
			ArmDelayMS:    followTimeoutMS(ks.Behavior),
			EmitTap:       emit,
			EmitCount:     1,
		}

	case HOLD:
		ks.State = RELEASE
		return Outcome{
			ReleaseHold: true,
			ArmTimeout:  TimeoutRel,
			ArmDelayMS:  relTimeoutMS(ks.Behavior),
		}

	default:
		// Unexpected release for current state; treat as a no-op rather
		// than corrupt state further (defensive, should not occur given
		// the dispatcher only forwards RELEASE_PHYSICAL to keys it knows
		// are in the queue).
		return Outcome{}
	}
}

// SameKeyPressed handles the SAME_KEY_PRESSED event, valid only from TAP.
func (ks *KeyState) SameKeyPressed(nowMS uint32) Outcome {
	if ks.State != TAP {
		return Outcome{}
	}
	ks.State = THL
	ks.PressTimeMS = nowMS
	return Outcome{
		CancelPending: true,
		ArmTimeout:    TimeoutTap,
		ArmDelayMS:    tapTimeoutMS(ks.Behavior),
	}
}

// Timeout handles a fired deferred callback. kind must match
// ks.PendingKind or the caller should not have invoked this (stale tokens
// are filtered by the queue before reaching here).
func (ks *KeyState) Timeout(kind TimeoutKind, nowMS uint32) Outcome {
	switch {
	case (ks.State == TOUCH || ks.State == THL) && kind == TimeoutTap:
		ks.State = HOLD
		ks.Promoted = true
		return Outcome{
			PromoteHold:      true,
			ReplaySuppressed: true,
		}

	case ks.State == TAP && kind == TimeoutFollow:
		ks.State = NONE
		out := Outcome{Pop: true}
		if ks.collapses() && ks.TapCount >= 1 {
			out.EmitTap = true
			out.EmitCount = ks.TapCount
		}
		return out

	case ks.State == RELEASE && kind == TimeoutRel:
		ks.State = NONE
		return Outcome{Pop: true}

	default:
		// Stale timeout: the state already advanced past what this
		// callback was armed for. No-op per spec §7.
		return Outcome{}
	}
}

// InterferingKeyPressed handles INTERFERING_KEY_PRESSED, valid only from
// TOUCH. For MTE behaviors the hold is promoted immediately; otherwise the
// caller is responsible for buffering the interfering key's events until
// this KeyState resolves (spec §4.3) — KeyState itself does no buffering.
func (ks *KeyState) InterferingKeyPressed(nowMS uint32) Outcome {
	if ks.State != TOUCH {
		return Outcome{}
	}
	if ks.Behavior.Kind == behavior.MTE {
		ks.State = HOLD
		ks.Promoted = true
		return Outcome{
			CancelPending:    true,
			PromoteHold:      true,
			ReplaySuppressed: true,
		}
	}
	return Outcome{}
}

// ForceFlush resolves a KeyState immediately regardless of its pending
// timer: a THL is flushed to a completed tap (TAP, then immediately NONE)
// rather than left to promote to HOLD. The active queue does not call it:
// ActiveQueue.Reset drops its entries without flushing them, and an
// externally released modifier does not flush a THL.
func (ks *KeyState) ForceFlush(nowMS uint32) Outcome {
	switch ks.State {
	case THL:
		ks.TapCount++
		ks.State = NONE
		return Outcome{
			CancelPending: true,
			EmitTap:       true,
			EmitCount: func() uint8 {
				if ks.collapses() {
					return ks.TapCount
				}
				return 1
			}(),
			Pop: true,
		}
	case TOUCH:
		ks.State = NONE
		return Outcome{CancelPending: true, Pop: true}
	case HOLD:
		ks.State = NONE
		return Outcome{CancelPending: true, ReleaseHold: true, Pop: true}
	default:
		ks.State = NONE
		return Outcome{CancelPending: true, Pop: true}
	}
}
