// Package queue implements the active-key queue: the ordered list of
// currently-unresolved smart keys (plus any plain keys queued behind them
// for ordering purposes) described in spec §4.3. It owns all cross-key
// bookkeeping — head-of-line blocking, cascade draining on resolution, and
// retroactive mod-patching for taps still in flight — so that
// internal/keystate.KeyState itself never needs a reference back to the
// queue or to its neighbors.
package queue

import (
	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/constants"
	"github.com/modtap/smtd/internal/interfaces"
	"github.com/modtap/smtd/internal/keystate"
	"github.com/modtap/smtd/internal/modlayer"
	"github.com/modtap/smtd/internal/scheduler"
)

type entryKind int

const (
	kindSmart entryKind = iota
	kindPlain
)

// openTap records the most recently emitted tap for an entry still sitting
// in the queue (TOUCH/THL→TAP transitions emit eagerly but don't pop), so a
// later hold promotion can patch it when global mod propagation is enabled.
type openTap struct {
	isMacro bool
	keycode uint16
	macroKC uint16
	mods    uint8
	layer   uint8
}

// Entry is one slot in the active queue: either a smart key driven by its
// own keystate.KeyState, or a plain key queued only to preserve the
// order of its press and release relative to the other entries.
type Entry struct {
	Pos     keystate.KeyPos
	Keycode uint16
	Kind    entryKind

	KS *keystate.KeyState

	plainEmittedPress bool
	plainReleased     bool

	open    *openTap
	pending *keystate.Outcome
}

// Config bundles the collaborators an ActiveQueue needs.
type Config struct {
	Host      interfaces.HostAdapter
	Scheduler scheduler.Scheduler
	Arbiter   *modlayer.Arbiter
	Logger    interfaces.Logger
	Observer  interfaces.Observer
	Capacity  int

	// GlobalModPropagation gates the retroactive-patch behavior of §4.5
	// point 3.
	GlobalModPropagation bool
}

// ActiveQueue is the FIFO-at-head queue of in-flight smart (and
// ordering-only plain) keys.
type ActiveQueue struct {
	entries []*Entry
	index   map[keystate.KeyPos]*Entry

	host     interfaces.HostAdapter
	sched    scheduler.Scheduler
	arb      *modlayer.Arbiter
	logger   interfaces.Logger
	observer interfaces.Observer
	capacity int
	propagate bool

	tokenOwner map[scheduler.Token]*Entry
	tokenKind  map[scheduler.Token]keystate.TimeoutKind
}

// New constructs an empty ActiveQueue.
func New(cfg Config) *ActiveQueue {
	cap := cfg.Capacity
	if cap <= 0 {
		cap = constants.DefaultQueueCapacity
	}
	return &ActiveQueue{
		index:      make(map[keystate.KeyPos]*Entry),
		host:       cfg.Host,
		sched:      cfg.Scheduler,
		arb:        cfg.Arbiter,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
		capacity:   cap,
		propagate:  cfg.GlobalModPropagation,
		tokenOwner: make(map[scheduler.Token]*Entry),
		tokenKind:  make(map[scheduler.Token]keystate.TimeoutKind),
	}
}

// Len reports the number of entries currently active.
func (q *ActiveQueue) Len() int { return len(q.entries) }

// Full reports whether a new entry would exceed capacity.
func (q *ActiveQueue) Full() bool { return len(q.entries) >= q.capacity }

// Has reports whether pos already has an active entry.
func (q *ActiveQueue) Has(pos keystate.KeyPos) bool {
	_, ok := q.index[pos]
	return ok
}

// EnqueueSmart creates a new smart KeyState at the tail, in TOUCH, and arms
// its initial TAP_TIMEOUT.
func (q *ActiveQueue) EnqueueSmart(pos keystate.KeyPos, keycode uint16, b behavior.Behavior, nowMS uint32) {
	snapMods := q.host.GetMods()
	snapLayer := q.host.GetLayer()
	ks, out := keystate.New(pos, keycode, b, nowMS, snapMods, snapLayer)
	e := &Entry{Pos: pos, Keycode: keycode, Kind: kindSmart, KS: ks}
	q.append(e)
	q.applyTimerOutcome(e, out)
	q.drain(nowMS)
}

// EnqueuePlainPassThrough queues a plain key at the tail, even into an
// empty queue; its press is emitted by drain once no smart entry ahead of
// it blocks, and its release is held back until every entry pressed after
// it has closed.
func (q *ActiveQueue) EnqueuePlainPassThrough(pos keystate.KeyPos, keycode uint16, nowMS uint32) {
	e := &Entry{Pos: pos, Keycode: keycode, Kind: kindPlain}
	q.append(e)
	q.drain(nowMS)
}

func (q *ActiveQueue) append(e *Entry) {
	q.entries = append(q.entries, e)
	q.index[e.Pos] = e
	if q.observer != nil {
		q.observer.ObserveQueueDepth(len(q.entries))
	}
}

// ReleasePhysical routes a physical release to the entry at pos, if any.
// Returns false if no entry owns pos (unknown release, spec §7 — caller
// passes through).
func (q *ActiveQueue) ReleasePhysical(pos keystate.KeyPos, nowMS uint32) bool {
	e, ok := q.index[pos]
	if !ok {
		return false
	}
	if e.Kind == kindPlain {
		e.plainReleased = true
		q.drain(nowMS)
		return true
	}
	out := e.KS.ReleasePhysical(nowMS)
	q.handleOutcome(e, out, nowMS)
	q.drain(nowMS)
	return true
}

// SameKeyPressed routes a same-physical-key re-press (TAP→THL) to pos's
// entry, if it's currently in TAP.
func (q *ActiveQueue) SameKeyPressed(pos keystate.KeyPos, nowMS uint32) bool {
	e, ok := q.index[pos]
	if !ok || e.Kind != kindSmart {
		return false
	}
	out := e.KS.SameKeyPressed(nowMS)
	q.handleOutcome(e, out, nowMS)
	q.drain(nowMS)
	return true
}

// InterferingKeyPressed notifies every smart TOUCH entry other than pos's
// own that a new key was pressed, per spec §4.2's INTERFERING_KEY_PRESSED row. Only MTE
// behaviors react (immediate promotion); others simply continue waiting,
// since the interfering key's own Entry already preserves ordering.
func (q *ActiveQueue) InterferingKeyPressed(nowMS uint32, exclude keystate.KeyPos) {
	for _, e := range q.entries {
		if e.Kind != kindSmart || e.Pos == exclude {
			continue
		}
		if e.KS.State != keystate.TOUCH {
			continue
		}
		out := e.KS.InterferingKeyPressed(nowMS)
		q.handleOutcome(e, out, nowMS)
	}
	q.drain(nowMS)
}

// FireTimeout delivers a fired scheduler callback to its owning entry,
// discarding it as stale if the token is no longer the one armed (token
// map is cleared on every cancel/re-arm so a stale token simply misses).
func (q *ActiveQueue) FireTimeout(tok scheduler.Token, nowMS uint32) {
	e, ok := q.tokenOwner[tok]
	if !ok {
		return // stale: already cancelled/superseded
	}
	kind := q.tokenKind[tok]
	delete(q.tokenOwner, tok)
	delete(q.tokenKind, tok)
	if e.KS.PendingTimeout != tok {
		return // stale by a different measure; defensive
	}
	out := e.KS.Timeout(kind, nowMS)
	if q.observer != nil {
		q.observer.ObserveTimeout(kind.String())
	}
	q.handleOutcome(e, out, nowMS)
	q.drain(nowMS)
}

// Reset cancels every armed timer and drops every active entry without
// emitting anything for it, then clears all bookkeeping, matching spec
// invariant 4 (byte-identical to initial after reset()).
func (q *ActiveQueue) Reset(nowMS uint32) {
	for _, e := range q.entries {
		if e.Kind == kindSmart {
			q.sched.Cancel(e.KS.PendingTimeout)
		}
	}
	q.entries = nil
	q.index = make(map[keystate.KeyPos]*Entry)
	q.tokenOwner = make(map[scheduler.Token]*Entry)
	q.tokenKind = make(map[scheduler.Token]keystate.TimeoutKind)
}

// handleOutcome applies the immediate, order-independent half of an
// Outcome (timer bookkeeping) and stashes the host-visible half for drain
// to apply once this entry is causally unblocked.
func (q *ActiveQueue) handleOutcome(e *Entry, out keystate.Outcome, nowMS uint32) {
	q.applyTimerOutcome(e, out)
	e.pending = &out
}

func (q *ActiveQueue) applyTimerOutcome(e *Entry, out keystate.Outcome) {
	if out.CancelPending && !e.KS.PendingTimeout.Zero() {
		q.sched.Cancel(e.KS.PendingTimeout)
		delete(q.tokenOwner, e.KS.PendingTimeout)
		delete(q.tokenKind, e.KS.PendingTimeout)
		e.KS.PendingTimeout = scheduler.Token{}
		e.KS.PendingKind = keystate.TimeoutNone
	}
	if out.ArmTimeout != keystate.TimeoutNone {
		tok := q.sched.Schedule(out.ArmDelayMS, func(tok scheduler.Token, arg any) {
			q.FireTimeout(tok, q.host.NowMS())
		}, nil)
		e.KS.PendingTimeout = tok
		e.KS.PendingKind = out.ArmTimeout
		q.tokenOwner[tok] = e
		q.tokenKind[tok] = out.ArmTimeout
	}
}

// blocksPress reports whether e is still ambiguous enough that an
// unemitted press behind it in the queue must keep waiting. Only smart
// entries gate press emission this way — a plain entry's own unresolved
// release never holds up the key behind it (spec §4.3's named SKSK/KSKS
// scenarios require the opposite: a plain key pressed while an earlier
// plain key is still held must still be free to press and, later, to
// have its own release emitted ahead of the earlier one).
func blocksPress(e *Entry) bool {
	if e.Kind != kindSmart {
		return false
	}
	switch e.KS.State {
	case keystate.TOUCH, keystate.TAP, keystate.THL:
		return true
	default:
		return false
	}
}

// blocksPop reports whether e is still "open" from the perspective of an
// earlier entry trying to close — used only by popResolvedPlains's
// backward scan. A smart entry whose tap has already been emitted and
// balanced (open != nil) is transparent even though its own KeyState is
// still waiting on FOLLOW_TIMEOUT, since nothing further needs to happen
// for an enclosing entry to safely close around it.
func blocksPop(e *Entry) bool {
	if e.Kind != kindSmart {
		return false
	}
	switch e.KS.State {
	case keystate.TAP:
		return e.open == nil
	case keystate.NONE, keystate.RELEASE:
		return false
	default: // TOUCH, THL, HOLD
		return true
	}
}

// drain walks the queue from the head, applying any stashed pending
// outcome for each entry that is now causally free to act and popping
// smart entries whose KeyState has reached NONE, then calls
// popResolvedPlains to close out any plain entries whose release was
// deferred behind a still-nested key.
func (q *ActiveQueue) drain(nowMS uint32) {
	i := 0
	for i < len(q.entries) {
		e := q.entries[i]

		if e.Kind == kindPlain {
			if !e.plainEmittedPress {
				q.emitPlainPress(e)
			}
			i++
			continue
		}

		if e.pending != nil {
			pending := e.pending
			e.pending = nil
			q.applyPending(e, *pending, nowMS)
			if pending.Pop {
				q.removeAt(i)
				continue
			}
		}

		if blocksPress(e) {
			break
		}
		i++
	}
	q.popResolvedPlains()
}

// popResolvedPlains emits the deferred release for every plain entry that
// has been physically released and is no longer nested inside a still-open
// entry, walking from the tail so a later-pressed key's release always
// emits before an earlier-pressed one it nests inside (spec §4.3's named
// SKSK/KSKS/SSKK tap-rearrangement scenarios). Smart entries are never
// removed here — they stay queued until their own KeyState reaches NONE
// via the forward walk above, which SameKeyPressed and FireTimeout both
// still depend on — but a smart entry already host-balanced (blocksPop
// false) is transparent to the scan rather than stopping it.
func (q *ActiveQueue) popResolvedPlains() {
	i := len(q.entries) - 1
	for i >= 0 {
		e := q.entries[i]
		if e.Kind == kindSmart {
			if blocksPop(e) {
				return
			}
			i--
			continue
		}
		if !e.plainEmittedPress || !e.plainReleased {
			return
		}
		q.emitPlainRelease(e)
		q.removeAt(i)
		i--
	}
}

func (q *ActiveQueue) emitPlainPress(e *Entry) {
	q.host.EmulateKey(e.Pos.Row, e.Pos.Col, true)
	e.plainEmittedPress = true
}

func (q *ActiveQueue) emitPlainRelease(e *Entry) {
	q.host.EmulateKey(e.Pos.Row, e.Pos.Col, false)
}

func (q *ActiveQueue) removeAt(i int) {
	e := q.entries[i]
	delete(q.index, e.Pos)
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}

func (q *ActiveQueue) applyPending(e *Entry, out keystate.Outcome, nowMS uint32) {
	if out.EmitTap {
		q.emitTap(e, out.EmitCount)
	}
	if out.PromoteHold {
		q.promote(e)
	}
	if out.ReleaseHold {
		q.unpromote(e)
	}
}

func (q *ActiveQueue) emitTap(e *Entry, count uint8) {
	if count == 0 {
		count = 1
	}
	mods := modlayer.EffectiveMods(e.KS.SnapshotMods, q.activeHoldBehaviors())
	layer := modlayer.EffectiveLayer(e.KS.SnapshotLayer, q.activeLTLayers())
	b := e.KS.Behavior
	macro := b.Kind == behavior.MT_ON_MKEY
	kc := e.Keycode
	if macro {
		kc = b.MacroKC
	}
	for n := uint8(0); n < count; n++ {
		if macro {
			q.host.RegisterCode(kc)
			q.host.UnregisterCode(kc)
		} else {
			q.host.EmulateKey(e.Pos.Row, e.Pos.Col, true)
			q.host.EmulateKey(e.Pos.Row, e.Pos.Col, false)
		}
	}
	e.open = &openTap{isMacro: macro, keycode: e.Keycode, macroKC: b.MacroKC, mods: mods, layer: layer}
	if q.observer != nil {
		q.observer.ObserveTap(kc, 0)
	}
}

// activeHoldMask returns the OR of mod_mask across every entry currently
// in HOLD.
func (q *ActiveQueue) activeHoldMask() uint8 {
	var mask uint8
	for _, e := range q.entries {
		if e.Kind == kindSmart && e.KS.State == keystate.HOLD {
			mask |= e.KS.Behavior.ModMask
		}
	}
	return mask
}

// activeHoldBehaviors returns the Behavior of every entry currently in
// HOLD, in queue order, for modlayer.EffectiveMods to OR against a tap's
// own snapshot mods (spec §4.4).
func (q *ActiveQueue) activeHoldBehaviors() []behavior.Behavior {
	var out []behavior.Behavior
	for _, e := range q.entries {
		if e.Kind == kindSmart && e.KS.State == keystate.HOLD {
			out = append(out, e.KS.Behavior)
		}
	}
	return out
}

// activeLTLayers returns the Layer of every LT entry currently in HOLD, in
// queue order, for modlayer.EffectiveLayer to prefer over a tap's own
// snapshot layer (spec §4.4).
func (q *ActiveQueue) activeLTLayers() []uint8 {
	var out []uint8
	for _, e := range q.entries {
		if e.Kind == kindSmart && e.KS.State == keystate.HOLD && e.KS.Behavior.Kind == behavior.LT {
			out = append(out, e.KS.Behavior.Layer)
		}
	}
	return out
}

func (q *ActiveQueue) promote(e *Entry) {
	e.KS.SavedLayer = q.host.GetLayer()
	q.arb.ApplyHold(e.KS.Behavior, q.activeHoldMask())
	if q.logger != nil {
		q.logger.WithPos(e.Pos.Row, e.Pos.Col).WithQueueLen(len(q.entries)).Debugf("promoted to hold kc=%d", e.Keycode)
	}
	if q.observer != nil {
		q.observer.ObserveHold(e.Keycode, 0)
	}
	if q.propagate {
		q.patchOpenTapsBehind(e)
	}
}

func (q *ActiveQueue) unpromote(e *Entry) {
	q.arb.ReleaseHold(e.KS.Behavior, q.activeHoldMask(), e.KS.SavedLayer)
	if q.logger != nil {
		q.logger.WithPos(e.Pos.Row, e.Pos.Col).Debugf("released hold kc=%d", e.Keycode)
	}
}

// patchOpenTapsBehind re-emits a correction for any not-yet-popped entry
// behind e whose most recent tap was emitted under mods that no longer
// match the freshly applied ones, per spec §4.5 point 3 (only when global
// mod propagation is enabled).
func (q *ActiveQueue) patchOpenTapsBehind(e *Entry) {
	idx := -1
	for i, cur := range q.entries {
		if cur == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	newMods := q.host.GetMods()
	for _, cur := range q.entries[idx+1:] {
		if cur.Kind != kindSmart || cur.open == nil {
			continue
		}
		if cur.open.mods == newMods {
			continue
		}
		if cur.open.isMacro {
			q.host.UnregisterCode(cur.open.macroKC)
			q.host.RegisterCode(cur.open.macroKC)
		} else {
			q.host.EmulateKey(cur.Pos.Row, cur.Pos.Col, false)
			q.host.EmulateKey(cur.Pos.Row, cur.Pos.Col, true)
		}
		cur.open.mods = newMods
	}
}
