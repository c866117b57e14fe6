package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver counts events by type and severity on a Prometheus
// registry. It is intended to run behind a MultiObserver next to the
// SlogObserver so metrics and logs stay in lockstep.
type MetricsObserver struct {
	events *prometheus.CounterVec
}

// NewMetricsObserver creates a MetricsObserver and registers its collectors
// on reg. Pass prometheus.DefaultRegisterer for process-wide metrics.
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conduit",
		Name:      "observer_events_total",
		Help:      "Events emitted by subsystems, by event type and severity.",
	}, []string{"type", "severity"})

	reg.MustRegister(events)
	return &MetricsObserver{events: events}
}

func (o *MetricsObserver) OnEvent(_ context.Context, event Event) {
	o.events.WithLabelValues(string(event.Type), event.Level.String()).Inc()
}
