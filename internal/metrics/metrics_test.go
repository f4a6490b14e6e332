package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TicksTotal.WithLabelValues("random-walk", "continue").Inc()
	m.TicksTotal.WithLabelValues("random-walk", "continue").Inc()
	m.EscalationsTotal.Inc()
	m.Fitness.WithLabelValues("p").Set(0.75)
	m.TickDuration.Observe(0.01)

	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("random-walk", "continue")); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Fitness.WithLabelValues("p")); got != 0.75 {
		t.Errorf("fitness = %v, want 0.75", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) < 4 {
		t.Errorf("gathered %d families", len(families))
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
