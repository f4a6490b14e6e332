package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/projector-align/internal/config"
	"github.com/danielpatrickdp/projector-align/internal/device"
	"github.com/danielpatrickdp/projector-align/internal/eval"
	"github.com/danielpatrickdp/projector-align/internal/fitness"
	"github.com/danielpatrickdp/projector-align/internal/logging"
	"github.com/danielpatrickdp/projector-align/internal/metrics"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/status"
	"github.com/danielpatrickdp/projector-align/internal/strategy"
	"github.com/danielpatrickdp/projector-align/internal/transform"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// #region helpers
const devName = "Projector [RPA]"

var lBlueprint = []transform.Vec3{{}, {X: 1}, {X: 2}, {X: 2, Y: 1}}

// zeroRand always draws zero: every force roll succeeds and every mutation fires.
type zeroRand struct{}

func (zeroRand) IntN(int) int     { return 0 }
func (zeroRand) Float64() float64 { return 0 }

type harness struct {
	t       *testing.T
	cfg     config.Config
	sim     *device.Sim
	backend *state.MemoryStore
	drv     *Driver
}

func newHarness(t *testing.T, id strategy.ID, sim *device.Sim, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, cfg: config.Default(), sim: sim, backend: state.NewMemoryStore()}
	h.cfg.Strategy = string(id)
	h.cfg.Store.Backend = "memory"
	opts := Options{
		Config:   func() (config.Config, error) { return h.cfg, nil },
		Resolver: device.NewRegistry(sim),
		Backend:  h.backend,
		NewRand:  func() (strategy.Rand, uint64) { return zeroRand{}, 1 },
	}
	for _, m := range mutate {
		m(&opts)
	}
	drv, err := New(opts)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	h.drv = drv
	return h
}

// misaligned returns a simulator whose truth is far from the identity.
func misaligned() *device.Sim {
	truth := transform.Transform{Offset: transform.Vec3{X: 1, Y: -1}, Rotation: transform.Vec3{Z: 1}}
	return device.SimFromTruth(devName, transform.Vec3{X: 10, Y: 10, Z: 10}, lBlueprint, truth)
}

func (h *harness) tick(arg string) Report {
	h.t.Helper()
	return h.drv.Tick(context.Background(), arg)
}

func (h *harness) persisted() state.SearchState {
	h.t.Helper()
	blob, err := h.backend.Load(context.Background(), devName)
	if err != nil {
		h.t.Fatalf("load: %v", err)
	}
	st, err := state.Decode(blob)
	if err != nil {
		h.t.Fatalf("decode: %v", err)
	}
	return st
}

// #endregion helpers

// #region lifecycle-tests
func TestTick_EndToEndConvergesForEveryStrategy(t *testing.T) {
	for _, id := range strategy.IDs() {
		t.Run(string(id), func(t *testing.T) {
			sim := misaligned()
			sim.ForceCounters(&fitness.Counters{Total: 10, Remaining: 10, Buildable: 0})
			h := newHarness(t, id, sim)

			rep := h.tick("")
			if rep.Outcome != OutcomeContinue || rep.Decision != DecisionActivate {
				t.Fatalf("activation: %s/%s (%v)", rep.Outcome, rep.Decision, rep.Err)
			}
			if rep.Fitness != 0 || rep.Phase != state.PhaseSearching || rep.Step != 0 {
				t.Fatalf("activation report = %+v", rep)
			}
			if sim.Commits() != 1 {
				t.Fatalf("activation commits = %d, want 1", sim.Commits())
			}

			for i := 0; i < 3; i++ {
				if rep = h.tick(""); rep.Outcome != OutcomeContinue {
					t.Fatalf("search tick %d: %s (%v)", i, rep.Outcome, rep.Err)
				}
			}

			sim.ForceCounters(&fitness.Counters{Total: 10, Remaining: 0})
			commits, saves := sim.Commits(), h.backend.Saves()
			rep = h.tick("")
			if rep.Outcome != OutcomeSuccess || rep.Phase != state.PhaseConverged {
				t.Fatalf("convergence: %s/%s", rep.Outcome, rep.Phase)
			}
			if sim.Commits() != commits {
				t.Fatal("transform applied on the converging tick")
			}
			if h.backend.Saves() != saves+1 {
				t.Fatal("converged phase not persisted")
			}

			// Sticky: no mutation and no write after Converged was reported once.
			sim.ForceCounters(&fitness.Counters{Total: 10, Remaining: 10})
			rep = h.tick("")
			if rep.Outcome != OutcomeSuccess {
				t.Fatalf("after convergence: %s", rep.Outcome)
			}
			if sim.Commits() != commits || h.backend.Saves() != saves+1 {
				t.Fatal("converged search was touched again")
			}
		})
	}
}

func TestTick_AlreadyAligned(t *testing.T) {
	sim := device.SimFromTruth(devName, transform.Vec3{}, lBlueprint, transform.Transform{})
	h := newHarness(t, strategy.RandomWalk, sim)

	rep := h.tick("")
	if rep.Outcome != OutcomeSuccess || rep.Fitness != 1 {
		t.Fatalf("got %s fitness %v", rep.Outcome, rep.Fitness)
	}
	if sim.Commits() != 0 {
		t.Fatal("aligned projection was moved")
	}
	if h.persisted().Phase != state.PhaseConverged {
		t.Fatal("converged phase not persisted")
	}
}

func TestTick_SimulatedSearchFindsTruth(t *testing.T) {
	// The origin blueprint cell sits on a structure cell, so the cell scan can reach it.
	truth := transform.Transform{Offset: transform.Vec3{X: 2}, Rotation: transform.Vec3{Z: 1}}
	sim := device.SimFromTruth(devName, transform.Vec3{X: 5, Y: 5, Z: 5}, lBlueprint, truth)
	h := newHarness(t, strategy.CellScan, sim)

	var rep Report
	for i := 0; i < 4*24+2; i++ {
		if rep = h.tick(""); rep.Outcome != OutcomeContinue {
			break
		}
	}
	if rep.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", rep.Outcome, rep.Reason)
	}
	if got := sim.Counters(sim.Applied()); !got.Aligned() {
		t.Fatalf("applied %v leaves %+v", sim.Applied(), got)
	}
}

func TestTick_Reset(t *testing.T) {
	sim := misaligned()
	h := newHarness(t, strategy.CellScan, sim)
	h.tick("")
	h.tick("")

	rep := h.tick("reset")
	if rep.Outcome != OutcomeHalted || rep.Phase != state.PhaseUninitialized {
		t.Fatalf("reset: %s/%s", rep.Outcome, rep.Phase)
	}
	if st := h.persisted(); st.Phase != state.PhaseUninitialized || st.Step != 0 {
		t.Fatalf("state after reset = %+v", st)
	}

	if rep = h.tick(""); rep.Decision != DecisionActivate {
		t.Fatalf("first tick after reset = %s, want activation", rep.Decision)
	}
}

func TestTick_StrategyChangeRestarts(t *testing.T) {
	h := newHarness(t, strategy.RandomWalk, misaligned())
	h.tick("")
	h.tick("")

	h.cfg.Strategy = string(strategy.LatticeScan)
	rep := h.tick("")
	if rep.Decision != DecisionActivate {
		t.Fatalf("decision = %s, want activation", rep.Decision)
	}
	if st := h.persisted(); st.Strategy != string(strategy.LatticeScan) || st.Step != 0 {
		t.Fatalf("state = %+v", st)
	}
	if !strings.Contains(h.drv.Status().Text(), "Strategy changed") {
		t.Errorf("status = %q", h.drv.Status().Text())
	}
}

// #endregion lifecycle-tests

// #region terminal-tests
func TestTick_RandomWalkExhausts(t *testing.T) {
	sim := misaligned()
	sim.ForceCounters(&fitness.Counters{Total: 10, Remaining: 10})
	h := newHarness(t, strategy.RandomWalk, sim)
	h.cfg.MaxSteps = 1

	h.tick("") // activation, step 0
	h.tick("") // step 0 -> 1
	h.tick("") // step 1 -> 2
	commits := sim.Commits()
	rep := h.tick("")
	if rep.Outcome != OutcomeExhausted || !errors.Is(rep.Err, ErrSearchExhausted) {
		t.Fatalf("got %s %v", rep.Outcome, rep.Err)
	}
	if sim.Commits() != commits {
		t.Fatal("exhaustion moved the projection")
	}
	if h.persisted().Phase != state.PhaseExhausted {
		t.Fatal("exhausted phase not persisted")
	}
	if !strings.Contains(h.drv.Status().Text(), "[Warning] Search exhausted") {
		t.Errorf("status = %q", h.drv.Status().Text())
	}

	if rep = h.tick(""); rep.Outcome != OutcomeExhausted || sim.Commits() != commits {
		t.Fatalf("exhausted phase not sticky: %s", rep.Outcome)
	}
}

func TestTick_AnnealedStepBudgetIsFatal(t *testing.T) {
	sim := misaligned()
	sim.ForceCounters(&fitness.Counters{Total: 10, Remaining: 10})
	h := newHarness(t, strategy.Annealed, sim)
	h.cfg.MaxSteps = 1

	h.tick("") // activation
	h.tick("") // seed
	h.tick("") // step 0 -> 1
	h.tick("") // step 1 -> 2
	saves := h.backend.Saves()
	before := h.persisted()

	rep := h.tick("")
	if rep.Outcome != OutcomeFatal || !errors.Is(rep.Err, ErrStepBudget) {
		t.Fatalf("got %s %v", rep.Outcome, rep.Err)
	}
	if h.backend.Saves() != saves {
		t.Fatal("fatal tick persisted state")
	}
	if diff := cmp.Diff(before, h.persisted()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

// #endregion terminal-tests

// #region error-tests
type panicResolver struct{}

func (panicResolver) Resolve(context.Context, string) (device.Device, error) {
	panic("resolver exploded")
}

func TestTick_Errors(t *testing.T) {
	tests := []struct {
		name   string
		sim    *device.Sim
		setup  func(*harness)
		opts   func(*Options)
		want   error
		inText string
	}{
		{
			name:   "tag not found",
			sim:    device.NewSim(device.SimConfig{Name: "Projector [OTHER]"}),
			want:   ErrConfiguration,
			inText: "[Error]",
		},
		{
			name: "ambiguous tag",
			sim:  misaligned(),
			opts: func(o *Options) {
				o.Resolver = device.NewRegistry(misaligned(), misaligned())
			},
			want: ErrConfiguration,
		},
		{
			name: "unknown strategy",
			sim:  misaligned(),
			setup: func(h *harness) {
				h.cfg.Strategy = "teleport"
			},
			want: ErrConfiguration,
		},
		{
			name: "config load failure",
			sim:  misaligned(),
			opts: func(o *Options) {
				o.Config = func() (config.Config, error) { return config.Config{}, errors.New("bad yaml") }
			},
			want: ErrConfiguration,
		},
		{
			name: "device broken",
			sim:  device.NewSim(device.SimConfig{Name: devName, Blueprint: lBlueprint, Broken: true}),
			want: ErrDeviceNotReady,
		},
		{
			name: "projection not spawned",
			sim:  device.NewSim(device.SimConfig{Name: devName, Blueprint: lBlueprint, NoProjection: true}),
			want: ErrDeviceNotReady,
		},
		{
			name: "corrupt state",
			sim:  misaligned(),
			setup: func(h *harness) {
				h.backend.Save(context.Background(), devName, "step: [")
			},
			want: ErrInvalidState,
		},
		{
			name: "panicking collaborator",
			sim:  misaligned(),
			opts: func(o *Options) { o.Resolver = panicResolver{} },
			want: ErrInvalidState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mut []func(*Options)
			if tt.opts != nil {
				mut = append(mut, tt.opts)
			}
			h := newHarness(t, strategy.RandomWalk, tt.sim, mut...)
			if tt.setup != nil {
				tt.setup(h)
			}
			saves := h.backend.Saves()

			rep := h.tick("")
			if rep.Outcome != OutcomeFatal || rep.Phase != state.PhaseFailed {
				t.Fatalf("got %s/%s", rep.Outcome, rep.Phase)
			}
			if !errors.Is(rep.Err, tt.want) {
				t.Fatalf("err = %v, want %v", rep.Err, tt.want)
			}
			if h.backend.Saves() != saves {
				t.Error("failed tick persisted state")
			}
			if tt.sim.Commits() != 0 {
				t.Error("failed tick moved the projection")
			}
			if tt.inText != "" && !strings.Contains(h.drv.Status().Text(), tt.inText) {
				t.Errorf("status = %q", h.drv.Status().Text())
			}
		})
	}
}

func TestTick_EvalRejectsBeforeApply(t *testing.T) {
	sim := misaligned()
	sim.ForceCounters(&fitness.Counters{Total: 10, Remaining: 10})
	h := newHarness(t, strategy.RandomWalk, sim, func(o *Options) {
		o.Eval = eval.NewEvalHarness(eval.EvalConfig{MaxOffset: 0})
	})
	h.tick("")
	commits, saves := sim.Commits(), h.backend.Saves()

	// zeroRand forces a keep and moves the offset one unit, past MaxOffset 0.
	rep := h.tick("")
	if !errors.Is(rep.Err, ErrInvalidState) {
		t.Fatalf("err = %v, want invalid state", rep.Err)
	}
	if sim.Commits() != commits || h.backend.Saves() != saves {
		t.Fatal("rejected step was applied or persisted")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(tickErr(ErrDeviceNotReady, "x")) != "device_not_ready" {
		t.Error("device_not_ready")
	}
	if KindOf(errors.New("x")) != "other" || KindOf(nil) != "" {
		t.Error("fallbacks")
	}
	err := &TickError{Kind: ErrStepBudget}
	if err.Error() != ErrStepBudget.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
}

// #endregion error-tests

// #region idempotence-tests
func TestTick_IdempotentForScans(t *testing.T) {
	for _, id := range []strategy.ID{strategy.CellScan, strategy.LatticeScan} {
		t.Run(string(id), func(t *testing.T) {
			sim := misaligned()
			sim.ForceCounters(&fitness.Counters{Total: 4, Remaining: 3, Buildable: 1})
			h := newHarness(t, id, sim)
			h.tick("")
			h.tick("")

			ctx := context.Background()
			snapshot, _ := h.backend.Load(ctx, devName)
			h.tick("")
			first := h.persisted()

			h.backend.Save(ctx, devName, snapshot)
			h.tick("")
			second := h.persisted()

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("repeated tick diverged (-first +second):\n%s", diff)
			}
		})
	}
}

// #endregion idempotence-tests

// #region observability-tests
func TestTick_StatusLines(t *testing.T) {
	var buf bytes.Buffer
	sim := misaligned()
	h := newHarness(t, strategy.RandomWalk, sim, func(o *Options) {
		o.Status = status.NewSurface(&buf, nil)
	})
	h.tick("")
	h.tick("")

	text := h.drv.Status().Text()
	for _, want := range []string{
		"[Info] Projector tag set to: [RPA]",
		"[Info] Projector found: " + devName,
		"[Info] Step 0 of 10",
		"[Info] Prev: ",
		"[Info] No rollback needed",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("status missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Projection reset") {
		t.Error("status was not refreshed between ticks")
	}
	if !strings.Contains(buf.String(), "Projection reset") {
		t.Error("activation lines never reached the sink")
	}
}

func TestTick_ProvenanceAndMetrics(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "aligner.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sim := misaligned()
	reg2 := device.NewRegistry(sim)
	cfg := config.Default()
	cfg.Strategy = string(strategy.CellScan)
	drv, err := New(Options{
		Config:   func() (config.Config, error) { return cfg, nil },
		Resolver: reg2,
		Backend:  store,
		Recorder: logging.NewSQLRecorder(store.DB()),
		Metrics:  m,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	drv.Tick(ctx, "")
	drv.Tick(ctx, "")

	versions, err := store.ListVersionsWithProvenance(ctx, devName, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].Decision != string(strategy.DecisionScan) || versions[1].Decision != string(DecisionActivate) {
		t.Errorf("decisions = %s, %s", versions[0].Decision, versions[1].Decision)
	}
	if versions[0].ParentID != versions[1].VersionID {
		t.Error("versions not chained")
	}
	var rec logging.TickRecord
	if err := json.Unmarshal([]byte(versions[0].ReadingJSON), &rec); err != nil {
		t.Fatalf("reading json: %v", err)
	}
	if rec.Tag != "RPA" || rec.Device != devName || rec.Strategy != "cell-scan" || rec.Total != len(lBlueprint) {
		t.Errorf("tick record = %+v", rec)
	}
	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("cell-scan", "continue")); got != 2 {
		t.Errorf("ticks metric = %v, want 2", got)
	}
}

// #endregion observability-tests
