package observability_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tailored-agentic-units/conduit/observability"
)

func TestMetricsObserver_CountsByTypeAndSeverity(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := observability.NewMetricsObserver(reg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		obs.OnEvent(ctx, observability.Event{
			Type:      "kernel.run.start",
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "kernel",
		})
	}
	obs.OnEvent(ctx, observability.Event{
		Type:      "transport.replay.gap",
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "transport",
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) != 1 {
		t.Fatalf("got %d metric families, want 1", len(families))
	}
	if got := families[0].GetName(); got != "conduit_observer_events_total" {
		t.Errorf("got metric name %q, want conduit_observer_events_total", got)
	}
	if got := len(families[0].GetMetric()); got != 2 {
		t.Errorf("got %d label combinations, want 2", got)
	}

	want := `
		# HELP conduit_observer_events_total Events emitted by subsystems, by event type and severity.
		# TYPE conduit_observer_events_total counter
		conduit_observer_events_total{severity="INFO",type="kernel.run.start"} 3
		conduit_observer_events_total{severity="WARN",type="transport.replay.gap"} 1
	`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "conduit_observer_events_total"); err != nil {
		t.Errorf("unexpected metric values: %v", err)
	}
}

func TestMetricsObserver_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetricsObserver(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	observability.NewMetricsObserver(reg)
}
