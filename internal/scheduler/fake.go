package scheduler

import "sort"

// pendingCall is one armed-but-not-yet-fired callback in the Fake
// scheduler.
type pendingCall struct {
	token     Token
	deadline  uint32
	armedAtMS uint32
	seq       uint64 // tie-break: earlier Schedule() call wins
	cb        Callback
	arg       any
	cancelled bool
	fired     bool
}

// Fake is a deterministic Scheduler for tests. Callbacks only fire when the
// test explicitly tells them to, via Fire, FireAll, or Advance — mirroring
// the test-introspection surface's execute_deferred(token) from spec.md §6.
type Fake struct {
	clock   *Clock
	pending []*pendingCall
	nextSeq uint64
}

// NewFake creates a Fake scheduler driven by clock. Pass the same Clock to
// a MockHost so NowMS and the scheduler's notion of "now" agree.
func NewFake(clock *Clock) *Fake {
	if clock == nil {
		clock = NewClock()
	}
	return &Fake{clock: clock}
}

// Schedule implements Scheduler.
func (f *Fake) Schedule(delayMS uint32, cb Callback, arg any) Token {
	token := newToken()
	now := f.clock.NowMS()
	f.pending = append(f.pending, &pendingCall{
		token:     token,
		deadline:  now + delayMS,
		armedAtMS: now,
		seq:       f.nextSeq,
		cb:        cb,
		arg:       arg,
	})
	f.nextSeq++
	return token
}

// Cancel implements Scheduler.
func (f *Fake) Cancel(token Token) {
	for _, p := range f.pending {
		if p.token == token {
			p.cancelled = true
		}
	}
}

// Pending returns the number of armed, uncancelled, unfired tokens.
func (f *Fake) Pending() int {
	n := 0
	for _, p := range f.pending {
		if !p.cancelled && !p.fired {
			n++
		}
	}
	return n
}

// Fire runs the callback for token immediately, regardless of its deadline,
// as long as it is still armed. It is a no-op for an unknown, cancelled, or
// already-fired token.
func (f *Fake) Fire(token Token) {
	for _, p := range f.pending {
		if p.token == token && !p.cancelled && !p.fired {
			p.fired = true
			p.cb(p.token, p.arg)
			return
		}
	}
}

// Advance moves the clock forward by deltaMS and fires every pending,
// uncancelled callback whose deadline has now passed, in deadline order
// with ties broken by scheduling order (spec.md §5's ordering guarantee:
// "tie-break: earlier scheduled wins").
func (f *Fake) Advance(deltaMS uint32) {
	f.clock.Advance(deltaMS)
	f.drainDue()
}

// drainDue fires every due callback, including ones newly armed by a
// callback that just fired whose deadline has also already passed.
func (f *Fake) drainDue() {
	for {
		due := f.dueCalls()
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].deadline != due[j].deadline {
				return due[i].deadline < due[j].deadline
			}
			return due[i].seq < due[j].seq
		})
		next := due[0]
		next.fired = true
		next.cb(next.token, next.arg)
	}
}

func (f *Fake) dueCalls() []*pendingCall {
	now := f.clock.NowMS()
	var due []*pendingCall
	for _, p := range f.pending {
		if !p.cancelled && !p.fired && p.deadline <= now {
			due = append(due, p)
		}
	}
	return due
}

// FireAll fires every still-armed callback immediately, in deadline order,
// without advancing the clock past each one's own deadline — i.e. it runs
// "all timeouts to completion" the way a test's run_all_timeouts() helper
// would, per spec.md §8's tap/hold idempotence laws.
func (f *Fake) FireAll() {
	for {
		var earliest *pendingCall
		for _, p := range f.pending {
			if p.cancelled || p.fired {
				continue
			}
			if earliest == nil || p.deadline < earliest.deadline ||
				(p.deadline == earliest.deadline && p.seq < earliest.seq) {
				earliest = p
			}
		}
		if earliest == nil {
			return
		}
		if earliest.deadline > f.clock.NowMS() {
			f.clock.Set(earliest.deadline)
		}
		earliest.fired = true
		earliest.cb(earliest.token, earliest.arg)
	}
}

// Tokens returns every currently armed, uncancelled, unfired token, for
// test-introspection's get_deferred_execs() (spec.md §6).
func (f *Fake) Tokens() []Token {
	var toks []Token
	for _, p := range f.pending {
		if !p.cancelled && !p.fired {
			toks = append(toks, p.token)
		}
	}
	return toks
}

// Reset clears all pending callbacks without firing them and rewinds the
// clock to 0. Engine.Reset does not call it; a test that wants a fresh
// Fake calls it directly.
func (f *Fake) Reset() {
	f.pending = nil
	f.nextSeq = 0
	f.clock.Set(0)
}
