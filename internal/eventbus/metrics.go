package eventbus

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes a Bus's publish/drop/subscriber counts as Prometheus
// collectors, for an operator wiring this engine's progress stream into
// the same scrape endpoint the rest of the corpus's services use rather
// than a bespoke stats struct.
type Metrics struct {
	published   prometheus.Counter
	dropped     prometheus.Counter
	subscribers prometheus.Gauge
}

// NewMetrics builds a Metrics set and registers it against reg. Pass a
// fresh prometheus.NewRegistry() in tests to avoid collisions with other
// scans sharing the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scancore", Subsystem: "eventbus", Name: "events_published_total",
			Help: "Total events published to the bus, regardless of subscriber match.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scancore", Subsystem: "eventbus", Name: "events_dropped_total",
			Help: "Total events dropped because a subscriber's queue was full.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scancore", Subsystem: "eventbus", Name: "subscribers",
			Help: "Current number of live subscriptions.",
		}),
	}
	reg.MustRegister(m.published, m.dropped, m.subscribers)
	return m
}

// Attach registers m against every Publish/Subscribe/Unsubscribe call on
// bus. A Bus with no Metrics attached behaves exactly as before; this is
// an optional observer, not a dependency Bus itself takes on.
func (b *Bus) Attach(m *Metrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}
