// Package obsprom is an optional Prometheus-backed interfaces.Observer,
// for a host firmware that wants to scrape smart-key behavior instead of
// (or alongside) reading the default Metrics snapshot. No package in this
// module imports it (cmd/smtd-demo uses smtd.Metrics); a caller that wants
// it passes it as Options.Observer, so the default build pays nothing for it.
package obsprom

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Observer implements interfaces.Observer against a Prometheus registry.
type Observer struct {
	taps         *prometheus.CounterVec
	holds        *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	degradations prometheus.Counter
	resolutionLatency *prometheus.HistogramVec
}

// New creates an Observer and registers its collectors with reg.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		taps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtd",
			Name:      "taps_total",
			Help:      "Total number of taps emitted, by keycode.",
		}, []string{"keycode"}),
		holds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtd",
			Name:      "holds_total",
			Help:      "Total number of holds promoted, by keycode.",
		}, []string{"keycode"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtd",
			Name:      "timeouts_total",
			Help:      "Total number of fired deferred timeouts, by kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smtd",
			Name:      "queue_depth",
			Help:      "Current depth of the active-key queue.",
		}),
		degradations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smtd",
			Name:      "queue_degradations_total",
			Help:      "Total number of presses degraded to pass-through by queue overflow.",
		}),
		resolutionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smtd",
			Name:      "resolution_latency_seconds",
			Help:      "Latency from physical press to tap/hold resolution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(o.taps, o.holds, o.timeouts, o.queueDepth, o.degradations, o.resolutionLatency)
	return o
}

// ObserveTap implements interfaces.Observer.
func (o *Observer) ObserveTap(kc uint16, latencyNs uint64) {
	o.taps.WithLabelValues(keycodeLabel(kc)).Inc()
	o.resolutionLatency.WithLabelValues("tap").Observe(float64(latencyNs) / 1e9)
}

// ObserveHold implements interfaces.Observer.
func (o *Observer) ObserveHold(kc uint16, latencyNs uint64) {
	o.holds.WithLabelValues(keycodeLabel(kc)).Inc()
	o.resolutionLatency.WithLabelValues("hold").Observe(float64(latencyNs) / 1e9)
}

// ObserveTimeout implements interfaces.Observer.
func (o *Observer) ObserveTimeout(kind string) {
	o.timeouts.WithLabelValues(kind).Inc()
}

// ObserveQueueDepth implements interfaces.Observer.
func (o *Observer) ObserveQueueDepth(depth int) {
	o.queueDepth.Set(float64(depth))
}

// ObserveDegradation implements interfaces.Observer.
func (o *Observer) ObserveDegradation() {
	o.degradations.Inc()
}

func keycodeLabel(kc uint16) string {
	const hexDigits = "0123456789abcdef"
	b := [6]byte{'0', 'x', hexDigits[(kc>>12)&0xf], hexDigits[(kc>>8)&0xf], hexDigits[(kc>>4)&0xf], hexDigits[kc&0xf]}
	return string(b[:])
}
