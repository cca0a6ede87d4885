package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealScheduleFires(t *testing.T) {
	r := NewReal(nil)
	var fired atomic.Bool
	r.Schedule(5, func(tok Token, arg any) { fired.Store(true) }, nil)

	assert.Eventually(t, fired.Load, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestRealCancelPreventsFire(t *testing.T) {
	r := NewReal(nil)
	var fired atomic.Bool
	token := r.Schedule(50, func(tok Token, arg any) { fired.Store(true) }, nil)
	r.Cancel(token)

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, 0, r.Pending())
}

func TestRealCancelUnknownTokenIsNoop(t *testing.T) {
	r := NewReal(nil)
	r.Cancel(Token{})
	assert.Equal(t, 0, r.Pending())
}
