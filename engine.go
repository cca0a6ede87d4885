// Package smtd implements a keyboard smart-key post-processor: it sits
// between a scan-matrix firmware and its USB HID report generator,
// disambiguating tap vs. hold vs. tap-then-hold for physical keys
// configured with smart behavior, and emits a reordered stream of
// register/unregister/emulate actions through a host adapter.
package smtd

import (
	"sync/atomic"

	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/constants"
	"github.com/modtap/smtd/internal/dispatch"
	"github.com/modtap/smtd/internal/interfaces"
	"github.com/modtap/smtd/internal/keystate"
	"github.com/modtap/smtd/internal/modlayer"
	"github.com/modtap/smtd/internal/queue"
	"github.com/modtap/smtd/internal/scheduler"
)

// KeyPos is the physical identity of a key: (row, col).
type KeyPos = keystate.KeyPos

// EngineParams is the static configuration an Engine is built from, the
// analogue of a device's parameter block: the behavior table, queue
// capacity, and the global mod propagation policy of spec §4.5/§9.
type EngineParams struct {
	Table *behavior.Table

	// QueueCapacity bounds the active queue (spec §7's queue overflow
	// case); 0 means DefaultQueueCapacity.
	QueueCapacity int

	// GlobalModPropagation gates whether a hold promoted after an earlier
	// tap is still in flight retroactively corrects that tap's already
	// emitted mods (spec §4.5 point 3, §9).
	GlobalModPropagation bool
}

// DefaultEngineParams returns the spec's documented defaults: an empty
// behavior table, queue capacity 8, and global mod propagation disabled.
func DefaultEngineParams() EngineParams {
	return EngineParams{
		Table:         behavior.EmptyTable(),
		QueueCapacity: constants.DefaultQueueCapacity,
	}
}

// Options carries optional collaborators for NewEngine: a logger, an
// observer, and a scheduler override (for tests, which inject a
// scheduler.Fake instead of the production scheduler.Real).
type Options struct {
	Logger    interfaces.Logger
	Observer  interfaces.Observer
	Scheduler scheduler.Scheduler

	// HistoryCapacity sizes the test-introspection ring buffer (spec §2.8,
	// §6). 0 disables history recording entirely.
	HistoryCapacity int
}

// Engine is the public entry point: one instance per keyboard, wired to a
// HostAdapter supplied by the caller.
type Engine struct {
	host     interfaces.HostAdapter
	dispatch *dispatch.Dispatcher
	queue    *queue.ActiveQueue
	arbiter  *modlayer.Arbiter
	sched    scheduler.Scheduler
	logger   interfaces.Logger
	observer interfaces.Observer

	reentrancy atomic.Bool

	history         []Record
	historyCapacity int

	lastDegradation *Record
}

// Record is one entry of the test-introspection history buffer: the
// effective mods/layer captured at emission time, per spec §6.
type Record struct {
	Row, Col uint8
	Keycode  uint16
	Pressed  bool
	Mods     uint8
	Layer    uint8
	Bypass   bool
}

// NewEngine constructs an Engine over host using params. A nil host is a
// configuration error, since every emission depends on it.
func NewEngine(params EngineParams, host interfaces.HostAdapter, opts *Options) (*Engine, error) {
	if host == nil {
		return nil, NewError("NewEngine", ErrCodeInvalidConfig, "nil host adapter")
	}
	if opts == nil {
		opts = &Options{}
	}
	if params.Table == nil {
		params.Table = behavior.EmptyTable()
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.NewReal(opts.Logger)
	}

	e := &Engine{
		host:            host,
		sched:           sched,
		logger:          opts.Logger,
		observer:        opts.Observer,
		historyCapacity: opts.HistoryCapacity,
	}

	recordingHost := host
	if e.historyCapacity > 0 {
		recordingHost = &recordingAdapter{HostAdapter: host, engine: e}
	}

	e.arbiter = modlayer.New(recordingHost)
	e.queue = queue.New(queue.Config{
		Host:                 recordingHost,
		Scheduler:            sched,
		Arbiter:              e.arbiter,
		Logger:               opts.Logger,
		Observer:             opts.Observer,
		Capacity:             params.QueueCapacity,
		GlobalModPropagation: params.GlobalModPropagation,
	})
	e.dispatch = dispatch.New(dispatch.Config{
		Host:     recordingHost,
		Table:    params.Table,
		Queue:    e.queue,
		Logger:   opts.Logger,
		Observer: opts.Observer,
		OnDegradation: func(pos keystate.KeyPos) {
			e.lastDegradation = &Record{
				Row: pos.Row, Col: pos.Col, Pressed: true,
				Mods: host.GetMods(), Layer: host.GetLayer(),
				Bypass: e.Bypass(),
			}
		},
	})

	if opts.Logger != nil {
		opts.Logger.Infof("smtd: engine created, queue capacity=%d propagation=%v", params.QueueCapacity, params.GlobalModPropagation)
	}

	return e, nil
}

// Process routes one physical key event. It must not be reentered: the
// engine is single-threaded cooperative per spec §5, and a reentrant call
// panics with a structured *Error.
func (e *Engine) Process(keycode uint16, pos KeyPos, pressed bool) bool {
	if !e.reentrancy.CompareAndSwap(false, true) {
		panic(NewKeyError("Process", pos, ErrCodeReentrant, "Process called while already executing"))
	}
	defer e.reentrancy.Store(false)

	result := e.dispatch.Process(keycode, pos, pressed)
	return result
}

// Reset returns the engine to its initial state: mods=0, layer=0, empty
// queue, no pending tokens (spec invariant 4).
func (e *Engine) Reset() {
	e.dispatch.Reset()
	e.arbiter.Reset()
	e.host.SetMods(0)
	e.host.SetLayer(0)
	e.history = nil
	e.lastDegradation = nil
}

// SetBypass toggles the short-circuit flag (spec §6).
func (e *Engine) SetBypass(on bool) {
	e.dispatch.SetBypass(on)
}

// Bypass reports the current bypass state.
func (e *Engine) Bypass() bool {
	return e.dispatch.Bypass()
}

// History returns the test-introspection record buffer: every emitted
// action with the effective mods/layer/bypass at the instant it was sent
// to the host, per spec §6. Empty unless Options.HistoryCapacity > 0.
func (e *Engine) History() []Record {
	out := make([]Record, len(e.history))
	copy(out, e.history)
	return out
}

// LastDegradation returns the most recent queue-overflow degradation
// record, or nil if none has occurred since the last Reset (spec §7).
func (e *Engine) LastDegradation() *Record {
	return e.lastDegradation
}

type tokenLister interface {
	Tokens() []scheduler.Token
}

type tokenFirer interface {
	Fire(scheduler.Token)
}

// DeferredExecs returns every currently armed scheduler token, for tests
// driving a scheduler.Fake (spec §6's get_deferred_execs()). Returns nil
// against a scheduler that doesn't expose its pending set (e.g. Real).
func (e *Engine) DeferredExecs() []scheduler.Token {
	if l, ok := e.sched.(tokenLister); ok {
		return l.Tokens()
	}
	return nil
}

// ExecuteDeferred fires one armed token immediately, bypassing its
// deadline (spec §6's execute_deferred(token)). No-op against a scheduler
// that doesn't support explicit firing.
func (e *Engine) ExecuteDeferred(token scheduler.Token) {
	if f, ok := e.sched.(tokenFirer); ok {
		f.Fire(token)
	}
}

func (e *Engine) recordEmission(r Record) {
	if e.historyCapacity <= 0 {
		return
	}
	e.history = append(e.history, r)
	if len(e.history) > e.historyCapacity {
		e.history = e.history[len(e.history)-e.historyCapacity:]
	}
}

// recordingAdapter wraps a HostAdapter to capture every emitted action
// into the owning Engine's history buffer, for test-introspection only.
type recordingAdapter struct {
	interfaces.HostAdapter
	engine *Engine
}

func (r *recordingAdapter) EmulateKey(row, col uint8, pressed bool) {
	r.engine.recordEmission(Record{
		Row: row, Col: col, Pressed: pressed,
		Mods: r.HostAdapter.GetMods(), Layer: r.HostAdapter.GetLayer(),
		Bypass: r.engine.Bypass(),
	})
	r.HostAdapter.EmulateKey(row, col, pressed)
}

func (r *recordingAdapter) RegisterCode(kc uint16) {
	r.engine.recordEmission(Record{
		Keycode: kc, Pressed: true,
		Mods: r.HostAdapter.GetMods(), Layer: r.HostAdapter.GetLayer(),
		Bypass: r.engine.Bypass(),
	})
	r.HostAdapter.RegisterCode(kc)
}

func (r *recordingAdapter) UnregisterCode(kc uint16) {
	r.engine.recordEmission(Record{
		Keycode: kc, Pressed: false,
		Mods: r.HostAdapter.GetMods(), Layer: r.HostAdapter.GetLayer(),
		Bypass: r.engine.Bypass(),
	})
	r.HostAdapter.UnregisterCode(kc)
}
