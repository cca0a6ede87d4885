package smtd

import "sync/atomic"

// Metrics is the default interfaces.Observer implementation: a handful of
// atomic counters, cheap enough to leave wired in production builds that
// never look at them.
type Metrics struct {
	taps         atomic.Uint64
	holds        atomic.Uint64
	timeouts     atomic.Uint64
	degradations atomic.Uint64
	maxQueueDepth atomic.Int64
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveTap implements interfaces.Observer.
func (m *Metrics) ObserveTap(kc uint16, latencyNs uint64) {
	m.taps.Add(1)
}

// ObserveHold implements interfaces.Observer.
func (m *Metrics) ObserveHold(kc uint16, latencyNs uint64) {
	m.holds.Add(1)
}

// ObserveTimeout implements interfaces.Observer.
func (m *Metrics) ObserveTimeout(kind string) {
	m.timeouts.Add(1)
}

// ObserveQueueDepth implements interfaces.Observer.
func (m *Metrics) ObserveQueueDepth(depth int) {
	for {
		cur := m.maxQueueDepth.Load()
		if int64(depth) <= cur {
			return
		}
		if m.maxQueueDepth.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// ObserveDegradation implements interfaces.Observer.
func (m *Metrics) ObserveDegradation() {
	m.degradations.Add(1)
}

// MetricsSnapshot is a point-in-time read of a Metrics' counters.
type MetricsSnapshot struct {
	Taps          uint64
	Holds         uint64
	Timeouts      uint64
	Degradations  uint64
	MaxQueueDepth int64
}

// Snapshot reads every counter without resetting them.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Taps:          m.taps.Load(),
		Holds:         m.holds.Load(),
		Timeouts:      m.timeouts.Load(),
		Degradations:  m.degradations.Load(),
		MaxQueueDepth: m.maxQueueDepth.Load(),
	}
}
