package reconcile

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts dispatched webhook events by type and outcome.
type Metrics struct {
	events *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "events_total",
			Help:      "Webhook events dispatched, by event type and outcome.",
		}, []string{"type", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.events)
	}
	return m
}

// NewDefaultMetrics registers on the default prometheus registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

func (m *Metrics) observe(eventType string, outcome Outcome) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, string(outcome)).Inc()
}
