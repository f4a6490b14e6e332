package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/config"
	"github.com/danielpatrickdp/projector-align/internal/device"
	"github.com/danielpatrickdp/projector-align/internal/eval"
	"github.com/danielpatrickdp/projector-align/internal/logging"
	"github.com/danielpatrickdp/projector-align/internal/metrics"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/status"
	"github.com/danielpatrickdp/projector-align/internal/strategy"
	"github.com/danielpatrickdp/projector-align/internal/transform"
	"go.uber.org/zap"
)

// #region outcome
// Outcome tells the host scheduler what to do next. Anything but Continue stops the loop.
type Outcome string

const (
	OutcomeContinue  Outcome = "continue"
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFatal     Outcome = "fatal"
	OutcomeHalted    Outcome = "halted"
)

// ResetCommand is the tick argument that discards the device's search state.
const ResetCommand = "reset"

// DecisionActivate marks the tick that applies the initial transform.
const DecisionActivate strategy.Decision = "activate"

// #endregion outcome

// #region report
// Report describes one tick.
type Report struct {
	Outcome  Outcome
	Phase    state.Phase
	Decision strategy.Decision
	Reason   string

	Tag       string
	Device    string
	Strategy  string
	Step      int
	Seed      uint64
	Fitness   float64
	Previous  float64
	Applied   transform.Transform
	Applies   bool
	Escalated bool
	VersionID string

	// Err is set for Fatal and Exhausted outcomes. Exhausted state is still persisted.
	Err error
}

// #endregion report

// #region options
// Options wires the driver's collaborators. Config, Resolver and Backend are required.
type Options struct {
	Config   func() (config.Config, error)
	Resolver device.Resolver
	Backend  state.Backend
	Recorder logging.Recorder
	Status   *status.Surface
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Eval     *eval.EvalHarness
	// NewRand returns a fresh source per tick and its seed.
	NewRand func() (strategy.Rand, uint64)
}

// #endregion options

// #region driver
// Driver runs one bounded alignment tick per call. All progress lives in the backend.
type Driver struct {
	opts Options
}

// New creates a driver, filling optional collaborators with no-op defaults.
func New(opts Options) (*Driver, error) {
	if opts.Config == nil || opts.Resolver == nil || opts.Backend == nil {
		return nil, errors.New("driver: config, resolver and backend are required")
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Status == nil {
		opts.Status = status.NewSurface(nil, opts.Log)
	}
	if opts.Recorder == nil {
		opts.Recorder = logging.NopRecorder{}
	}
	if opts.Eval == nil {
		opts.Eval = eval.NewEvalHarness(eval.DefaultEvalConfig())
	}
	if opts.NewRand == nil {
		opts.NewRand = strategy.NewTickRand
	}
	return &Driver{opts: opts}, nil
}

// Status returns the surface the driver reports on.
func (d *Driver) Status() *status.Surface {
	return d.opts.Status
}

// #endregion driver

// #region tick
// Tick runs one unit of work. arg is the out-of-band command; "reset" discards the
// device's search state. Panics in collaborators are recovered into a Fatal report.
func (d *Driver) Tick(ctx context.Context, arg string) (rep Report) {
	start := time.Now()
	d.opts.Status.Refresh()

	defer func() {
		if r := recover(); r != nil {
			rep = d.fail(ctx, rep, &TickError{Kind: ErrInvalidState, Err: fmt.Errorf("panic: %v", r)})
		}
		d.observe(rep, time.Since(start))
		if err := d.opts.Status.Flush(); err != nil {
			d.opts.Log.Warn("status flush failed", zap.Error(err))
		}
	}()

	cfg, err := d.opts.Config()
	if err != nil {
		return d.fail(ctx, rep, &TickError{Kind: ErrConfiguration, Err: err})
	}
	rep.Strategy = cfg.Strategy
	rep.Tag = cfg.Tag
	strat, err := strategy.New(strategy.ID(cfg.Strategy), cfg.Params())
	if err != nil {
		return d.fail(ctx, rep, &TickError{Kind: ErrConfiguration, Err: err})
	}

	// Uninitialized -> Activating: resolve the device by tag.
	d.opts.Status.Infof("Projector tag set to: %s", device.TagMarker(cfg.Tag))
	dev, err := d.opts.Resolver.Resolve(ctx, cfg.Tag)
	if err != nil {
		rep.Device = device.TagMarker(cfg.Tag)
		return d.fail(ctx, rep, &TickError{Kind: ErrConfiguration, Err: err})
	}
	rep.Device = dev.Name()
	d.opts.Status.Infof("Projector found: %s", dev.Name())

	if strings.TrimSpace(arg) == ResetCommand {
		return d.reset(ctx, rep)
	}

	blob, err := d.opts.Backend.Load(ctx, rep.Device)
	if err != nil {
		return d.fail(ctx, rep, tickErr(ErrInvalidState, "load state: %w", err))
	}
	st, err := state.Decode(blob)
	if err != nil {
		return d.fail(ctx, rep, tickErr(ErrInvalidState, "decode state: %w", err))
	}
	if st.Phase != state.PhaseUninitialized && st.Strategy != string(strat.ID()) {
		d.opts.Status.Warnf("Strategy changed from %s to %s, restarting search", st.Strategy, strat.ID())
		st = state.New(string(strat.ID()))
	}
	if st.Phase.Terminal() {
		return d.terminal(rep, st)
	}

	// Activating -> Searching: the device must be working and projecting.
	if err := dev.Start(ctx); err != nil {
		return d.fail(ctx, rep, tickErr(ErrDeviceNotReady, "start: %w", err))
	}
	ds, err := dev.Status(ctx)
	if err != nil {
		return d.fail(ctx, rep, tickErr(ErrDeviceNotReady, "status: %w", err))
	}
	if !ds.Working || !ds.Projecting {
		return d.fail(ctx, rep, tickErr(ErrDeviceNotReady, "working=%v projecting=%v", ds.Working, ds.Projecting))
	}

	occ := candidates.NewOccupancy(candidates.Local(ds.Structure, ds.Position))
	reading := strategy.NewReading(ds.Counters, occ)
	rep.Fitness = reading.Fitness

	if ds.Counters.Aligned() {
		return d.converged(ctx, rep, st, strat, reading)
	}
	if st.Phase == state.PhaseUninitialized {
		return d.activate(ctx, rep, dev, strat, reading)
	}
	return d.step(ctx, rep, dev, st, strat, cfg.Params(), reading, ds)
}

// #endregion tick

// #region activate
// activate builds a fresh search state and applies its starting transform. No strategy
// step runs, so the next reading reflects the starting transform.
func (d *Driver) activate(ctx context.Context, rep Report, dev device.Device, strat strategy.Strategy, r strategy.Reading) Report {
	next := strat.Init(state.New(string(strat.ID())))
	next.Phase = state.PhaseSearching
	next.Step = 0
	next.CurrentFitness = r.Fitness

	if err := device.Apply(ctx, dev, next.Current); err != nil {
		return d.fail(ctx, rep, tickErr(ErrDeviceNotReady, "apply initial transform: %w", err))
	}
	d.opts.Status.Infof("Projection reset to %s", next.Current)

	rep.Outcome = OutcomeContinue
	rep.Decision = DecisionActivate
	rep.Reason = "search started"
	rep.Applied, rep.Applies = next.Current, true
	return d.persist(ctx, rep, next, r)
}

// #endregion activate

// #region converged
// converged records success without touching the transform.
func (d *Driver) converged(ctx context.Context, rep Report, st state.SearchState, strat strategy.Strategy, r strategy.Reading) Report {
	next := st.Clone()
	next.Strategy = string(strat.ID())
	next.Phase = state.PhaseConverged
	next.CurrentFitness = r.Fitness
	d.opts.Status.Infof("Projection aligned after %d steps", next.Step)

	rep.Outcome = OutcomeSuccess
	rep.Decision = strategy.DecisionConverged
	rep.Reason = "no remaining units"
	return d.persist(ctx, rep, next, r)
}

// #endregion converged

// #region step
func (d *Driver) step(ctx context.Context, rep Report, dev device.Device, st state.SearchState, strat strategy.Strategy, params strategy.Params, r strategy.Reading, ds device.Status) Report {
	if p, ok := strat.(strategy.Preparer); ok {
		st = p.Prepare(st, ds.Structure, ds.Position)
	}
	// Only the stochastic strategies get a fresh source, so the scans stay idempotent.
	var rng strategy.Rand
	var seed uint64
	if strat.ID().Stochastic() {
		rng, seed = d.opts.NewRand()
	}
	res := strat.Step(st, r, rng)
	next := res.Next
	next.Strategy = string(strat.ID())
	next.Seed = seed

	if budget := params.Budget(strat.ID()); budget > 0 {
		d.opts.Status.Infof("Step %d of %d", st.Step, budget)
	} else {
		d.opts.Status.Infof("Step %d", st.Step)
	}
	d.opts.Status.Infof("Prev: %.4f, Curr: %.4f", st.PreviousFitness, r.Fitness)
	switch res.Decision {
	case strategy.DecisionRollback:
		d.opts.Status.Infof("Rollback needed")
	case strategy.DecisionKeep:
		d.opts.Status.Infof("No rollback needed")
	}
	if res.Escalated {
		d.opts.Status.Infof("Stalled, rotation code now %d", next.RotationCode)
	}

	rep.Decision = res.Decision
	rep.Reason = res.Reason
	rep.Escalated = res.Escalated

	switch res.Outcome {
	case strategy.OutcomeContinue:
		next.Phase = state.PhaseSearching
	case strategy.OutcomeSuccess:
		next.Phase = state.PhaseConverged
		rep.Outcome = OutcomeSuccess
		return d.persist(ctx, rep, next, r)
	case strategy.OutcomeExhausted:
		next.Phase = state.PhaseExhausted
		rep.Outcome = OutcomeExhausted
		rep.Err = &TickError{Kind: ErrSearchExhausted, Err: errors.New(res.Reason)}
		d.opts.Status.Warnf("Search exhausted: %s. Keeping the last tried transform", res.Reason)
		return d.persist(ctx, rep, next, r)
	default:
		return d.fail(ctx, rep, &TickError{Kind: ErrStepBudget, Err: errors.New(res.Reason)})
	}

	if ev := d.opts.Eval.Run(next); !ev.Passed {
		return d.fail(ctx, rep, &TickError{Kind: ErrInvalidState, Err: errors.New(ev.Reason)})
	}
	if res.Applies {
		if err := device.Apply(ctx, dev, res.Apply); err != nil {
			return d.fail(ctx, rep, tickErr(ErrDeviceNotReady, "apply: %w", err))
		}
		rep.Applied, rep.Applies = res.Apply, true
	}
	rep.Outcome = OutcomeContinue
	return d.persist(ctx, rep, next, r)
}

// #endregion step

// #region terminal
// terminal reports a finished search without touching device or state. Phases stay sticky
// until a reset.
func (d *Driver) terminal(rep Report, st state.SearchState) Report {
	rep.Phase = st.Phase
	rep.Step = st.Step
	rep.Fitness = st.CurrentFitness
	rep.Reason = fmt.Sprintf("search already %s, reset to restart", st.Phase)
	switch st.Phase {
	case state.PhaseConverged:
		rep.Outcome = OutcomeSuccess
		rep.Decision = strategy.DecisionConverged
	case state.PhaseExhausted:
		rep.Outcome = OutcomeExhausted
		rep.Decision = strategy.DecisionExhausted
		rep.Err = &TickError{Kind: ErrSearchExhausted}
	default:
		rep.Outcome = OutcomeFatal
		rep.Decision = strategy.DecisionFatal
		rep.Err = &TickError{Kind: ErrInvalidState, Err: errors.New(rep.Reason)}
	}
	d.opts.Status.Infof("%s", rep.Reason)
	return rep
}

// #endregion terminal

// #region reset
func (d *Driver) reset(ctx context.Context, rep Report) Report {
	if err := d.opts.Backend.Delete(ctx, rep.Device); err != nil {
		return d.fail(ctx, rep, tickErr(ErrInvalidState, "reset: %w", err))
	}
	d.opts.Status.Infof("Search state reset")
	rep.Outcome = OutcomeHalted
	rep.Phase = state.PhaseUninitialized
	rep.Decision = "reset"
	rep.Reason = "reset requested"
	d.record(ctx, "reset", rep, strategy.Reading{})
	return rep
}

// #endregion reset

// #region persist
func (d *Driver) persist(ctx context.Context, rep Report, next state.SearchState, r strategy.Reading) Report {
	blob, err := state.Encode(next)
	if err != nil {
		return d.fail(ctx, rep, tickErr(ErrInvalidState, "encode state: %w", err))
	}
	vid, err := d.opts.Backend.Save(ctx, rep.Device, blob)
	if err != nil {
		return d.fail(ctx, rep, tickErr(ErrInvalidState, "save state: %w", err))
	}
	rep.VersionID = vid
	rep.Phase = next.Phase
	rep.Step = next.Step
	rep.Strategy = next.Strategy
	rep.Seed = next.Seed
	rep.Previous = next.PreviousFitness
	d.record(ctx, "tick", rep, r)
	return rep
}

// #endregion persist

// #region fail
// fail turns err into a Fatal report. Persisted state is left as it was.
func (d *Driver) fail(ctx context.Context, rep Report, err error) Report {
	rep.Outcome = OutcomeFatal
	rep.Phase = state.PhaseFailed
	rep.Decision = strategy.DecisionFatal
	rep.Reason = err.Error()
	rep.Err = err
	rep.Applies = false
	d.opts.Status.Errorf("%s", err)
	d.record(ctx, "tick", rep, strategy.Reading{})
	return rep
}

// #endregion fail

// #region helpers
func (d *Driver) record(ctx context.Context, trigger string, rep Report, r strategy.Reading) {
	if rep.Device == "" {
		return
	}
	rec := logging.TickRecord{
		Tag:             rep.Tag,
		Device:          rep.Device,
		Strategy:        rep.Strategy,
		Step:            rep.Step,
		Seed:            rep.Seed,
		Total:           r.Counters.Total,
		Remaining:       r.Counters.Remaining,
		Buildable:       r.Counters.Buildable,
		Fitness:         r.Fitness,
		PreviousFitness: rep.Previous,
		Escalated:       rep.Escalated,
		Outcome:         string(rep.Outcome),
		Phase:           string(rep.Phase),
	}
	if rep.Applies {
		rec.Applied = rep.Applied.String()
	}
	err := d.opts.Recorder.Record(ctx, logging.ProvenanceEntry{
		VersionID:   rep.VersionID,
		DeviceKey:   rep.Device,
		TriggerType: trigger,
		ReadingJSON: logging.EncodeRecord(rec),
		Decision:    string(rep.Decision),
		Reason:      rep.Reason,
	})
	if err != nil {
		d.opts.Log.Warn("provenance write failed", zap.String("device", rep.Device), zap.Error(err))
	}
}

func (d *Driver) observe(rep Report, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("device", rep.Device),
		zap.String("strategy", rep.Strategy),
		zap.String("outcome", string(rep.Outcome)),
		zap.String("decision", string(rep.Decision)),
		zap.Int("step", rep.Step),
		zap.Float64("fitness", rep.Fitness),
		zap.Duration("elapsed", elapsed),
	}
	if rep.Outcome == OutcomeFatal {
		d.opts.Log.Error("tick failed", append(fields, zap.Error(rep.Err))...)
	} else {
		d.opts.Log.Debug("tick", fields...)
	}

	m := d.opts.Metrics
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(rep.Strategy, string(rep.Outcome)).Inc()
	if rep.Decision != "" {
		m.DecisionsTotal.WithLabelValues(rep.Strategy, string(rep.Decision)).Inc()
	}
	if rep.Escalated {
		m.EscalationsTotal.Inc()
	}
	if rep.Err != nil {
		m.ErrorsTotal.WithLabelValues(KindOf(rep.Err)).Inc()
	}
	if rep.Device != "" && rep.Outcome != OutcomeFatal {
		m.Fitness.WithLabelValues(rep.Device).Set(rep.Fitness)
		m.Step.WithLabelValues(rep.Device).Set(float64(rep.Step))
	}
	m.TickDuration.Observe(elapsed.Seconds())
}

// #endregion helpers
