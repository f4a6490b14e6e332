package device

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/projector-align/internal/fitness"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region registry-tests
type otherKind struct{ *Sim }

func (otherKind) Kind() string { return "welder" }

func TestRegistryResolve(t *testing.T) {
	a := NewSim(SimConfig{Name: "Projector [RPA]"})
	b := NewSim(SimConfig{Name: "Projector [RPB]"})
	c := NewSim(SimConfig{Name: "Projector [RPB] spare"})
	w := otherKind{NewSim(SimConfig{Name: "Welder [RPA]"})}
	reg := NewRegistry(a, b, w)
	reg.Add(c)

	tests := []struct {
		name    string
		tag     string
		want    Device
		wantErr error
	}{
		{"single match", "RPA", a, nil},
		{"none", "XYZ", nil, ErrNotFound},
		{"ambiguous", "RPB", nil, ErrAmbiguous},
		{"bare tag without brackets does not match", "Projector", nil, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Resolve(context.Background(), tt.tag)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("resolved %s, want %s", got.Name(), tt.want.Name())
			}
		})
	}
}

// #endregion registry-tests

// #region sim-tests
var lBlueprint = []transform.Vec3{{}, {X: 1}, {X: 2}, {X: 2, Y: 1}}

func TestSimCountersAtTruth(t *testing.T) {
	truth := transform.Transform{
		Offset:   transform.Vec3{X: 1, Y: -1},
		Rotation: transform.Vec3{Z: 1},
	}
	sim := SimFromTruth("p [T]", transform.Vec3{X: 10, Y: 10, Z: 10}, lBlueprint, truth)

	if c := sim.Counters(truth); c.Remaining != 0 || c.Total != 4 {
		t.Fatalf("at truth: %+v, want fully aligned", c)
	}
	if f := fitness.Score(sim.Counters(truth)); f != 1 {
		t.Fatalf("fitness at truth = %v", f)
	}
	if c := sim.Counters(transform.Transform{}); c.Remaining == 0 {
		t.Fatalf("identity should not align: %+v", c)
	}
}

func TestSimBuildableCountsAdjacentCells(t *testing.T) {
	sim := NewSim(SimConfig{
		Blueprint: []transform.Vec3{{}, {X: 1}, {X: 5}},
		Structure: []transform.Vec3{{}},
	})
	c := sim.Counters(transform.Transform{})
	want := fitness.Counters{Total: 3, Remaining: 2, Buildable: 1}
	if c != want {
		t.Fatalf("counters = %+v, want %+v", c, want)
	}
}

func TestSimLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimConfig{Name: "p", Blueprint: lBlueprint})

	st, _ := sim.Status(ctx)
	if st.Working || st.Projecting {
		t.Fatalf("unstarted device reports %+v", st)
	}
	if err := Apply(ctx, sim, transform.Transform{}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("apply before start: %v", err)
	}

	if err := sim.Start(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = sim.Status(ctx)
	if !st.Working || !st.Projecting {
		t.Fatalf("started device reports %+v", st)
	}

	want := transform.Transform{Offset: transform.Vec3{Y: 3}, Rotation: transform.Vec3{X: -1}}
	if err := Apply(ctx, sim, want); err != nil {
		t.Fatal(err)
	}
	if sim.Applied() != want || sim.Commits() != 1 {
		t.Fatalf("applied %v after %d commits", sim.Applied(), sim.Commits())
	}

	sim.ForceCounters(&fitness.Counters{Total: 10})
	if st, _ = sim.Status(ctx); st.Counters.Remaining != 0 || st.Counters.Total != 10 {
		t.Fatalf("override ignored: %+v", st.Counters)
	}
}

func TestSimNotReady(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []SimConfig{{Broken: true}, {NoProjection: true}} {
		sim := NewSim(cfg)
		_ = sim.Start(ctx)
		st, _ := sim.Status(ctx)
		if st.Working && st.Projecting {
			t.Errorf("%+v: device should not be ready", cfg)
		}
	}
}

// #endregion sim-tests
