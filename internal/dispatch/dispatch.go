// Package dispatch implements the top-level entry point the host calls for
// every physical key event (spec §4.1). Dispatcher is the structural
// analogue of a small lifecycle controller: one method per operation,
// constructed with its collaborators, logging each routing decision.
package dispatch

import (
	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/interfaces"
	"github.com/modtap/smtd/internal/keystate"
	"github.com/modtap/smtd/internal/queue"
)

// Config bundles the collaborators a Dispatcher routes events through.
type Config struct {
	Host     interfaces.HostAdapter
	Table    *behavior.Table
	Queue    *queue.ActiveQueue
	Logger   interfaces.Logger
	Observer interfaces.Observer

	// OnDegradation, if set, is notified with the position of a press
	// degraded to pass-through by queue overflow (spec §7), for
	// test-introspection beyond the Observer interface's bare counter.
	OnDegradation func(pos keystate.KeyPos)
}

// Dispatcher routes physical key events per spec §4.1.
type Dispatcher struct {
	host          interfaces.HostAdapter
	table         *behavior.Table
	queue         *queue.ActiveQueue
	logger        interfaces.Logger
	observer      interfaces.Observer
	onDegradation func(pos keystate.KeyPos)
	bypass        bool
}

// New constructs a Dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		host:          cfg.Host,
		table:         cfg.Table,
		queue:         cfg.Queue,
		logger:        cfg.Logger,
		observer:      cfg.Observer,
		onDegradation: cfg.OnDegradation,
	}
}

// SetBypass toggles the short-circuit flag (spec §6).
func (d *Dispatcher) SetBypass(on bool) {
	d.bypass = on
}

// Bypass reports the current bypass state.
func (d *Dispatcher) Bypass() bool { return d.bypass }

// Reset clears the queue and bypass state.
func (d *Dispatcher) Reset() {
	d.bypass = false
	d.queue.Reset(d.host.NowMS())
}

// Process routes one physical key event and returns whether the downstream
// firmware should still process it itself (true) or whether this engine
// has already taken ownership of it (false).
func (d *Dispatcher) Process(keycode uint16, pos keystate.KeyPos, pressed bool) bool {
	if d.bypass {
		return true
	}

	now := d.host.NowMS()

	if pressed {
		return d.processPress(keycode, pos, now)
	}
	return d.processRelease(keycode, pos, now)
}

func (d *Dispatcher) processPress(keycode uint16, pos keystate.KeyPos, now uint32) bool {
	if d.queue.Has(pos) {
		// Same physical key pressed again while its own entry is still
		// active: only meaningful from TAP (folds into THL, spec §4.2);
		// otherwise ignored as a spurious duplicate press.
		d.queue.SameKeyPressed(pos, now)
		return false
	}

	b := d.table.Lookup(keycode)

	if d.queue.Full() {
		if d.logger != nil {
			d.logger.WithPos(pos.Row, pos.Col).WithQueueLen(d.queue.Len()).Warnf("queue full, degrading press to pass-through")
		}
		if d.observer != nil {
			d.observer.ObserveDegradation()
		}
		if d.onDegradation != nil {
			d.onDegradation(pos)
		}
		d.host.EmulateKey(pos.Row, pos.Col, true)
		return false
	}

	d.queue.InterferingKeyPressed(now, pos)

	if b.IsSmart() {
		if d.logger != nil {
			d.logger.WithPos(pos.Row, pos.Col).Debugf("enqueue smart key kc=%d kind=%s", keycode, b.Kind)
		}
		d.queue.EnqueueSmart(pos, keycode, b, now)
	} else {
		if d.logger != nil {
			d.logger.WithPos(pos.Row, pos.Col).Debugf("enqueue plain pass-through")
		}
		// Every plain key is tracked, even into an otherwise-empty queue:
		// its release may need to be deferred behind a later-pressed key
		// still nested inside it (spec §4.3's tap-rearrangement rule).
		// EnqueuePlainPassThrough still emits the press immediately when
		// nothing ahead of it is blocking, so the common single-key case
		// is unaffected.
		d.queue.EnqueuePlainPassThrough(pos, keycode, now)
	}
	return false
}

func (d *Dispatcher) processRelease(keycode uint16, pos keystate.KeyPos, now uint32) bool {
	if d.queue.Has(pos) {
		d.queue.ReleasePhysical(pos, now)
		return false
	}
	// Unknown release (spec §7): not tracked by us, pass straight through
	// with whatever mods/layer currently apply.
	if d.logger != nil {
		d.logger.WithPos(pos.Row, pos.Col).Debugf("unknown release, passing through")
	}
	d.host.EmulateKey(pos.Row, pos.Col, false)
	return false
}
