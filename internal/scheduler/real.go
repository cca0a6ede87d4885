package scheduler

import (
	"sync"
	"time"

	"github.com/modtap/smtd/internal/interfaces"
)

// armed tracks one outstanding timer so Cancel can stop it.
type armed struct {
	timer *time.Timer
}

// Real is a Scheduler backed by time.AfterFunc, for production use against
// real firmware timing.
type Real struct {
	mu     sync.Mutex
	timers map[Token]*armed
	logger interfaces.Logger
}

// NewReal creates a production Scheduler. logger may be nil.
func NewReal(logger interfaces.Logger) *Real {
	return &Real{
		timers: make(map[Token]*armed),
		logger: logger,
	}
}

// Schedule implements Scheduler.
func (r *Real) Schedule(delayMS uint32, cb Callback, arg any) Token {
	token := newToken()

	r.mu.Lock()
	timer := time.AfterFunc(time.Duration(delayMS)*time.Millisecond, func() {
		r.mu.Lock()
		_, stillArmed := r.timers[token]
		delete(r.timers, token)
		r.mu.Unlock()

		if !stillArmed {
			// Cancelled between firing and the lock above; drop it.
			return
		}
		cb(token, arg)
	})
	r.timers[token] = &armed{timer: timer}
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debugf("scheduler: armed token=%s delay_ms=%d", token, delayMS)
	}
	return token
}

// Cancel implements Scheduler.
func (r *Real) Cancel(token Token) {
	r.mu.Lock()
	a, ok := r.timers[token]
	if ok {
		delete(r.timers, token)
	}
	r.mu.Unlock()

	if ok {
		a.timer.Stop()
		if r.logger != nil {
			r.logger.Debugf("scheduler: cancelled token=%s", token)
		}
	}
}

// Pending returns the number of currently armed tokens, for tests checking
// the "empty queue implies no pending scheduler tokens" invariant.
func (r *Real) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
