package eval

import (
	"fmt"

	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region eval-harness
// EvalHarness checks a proposed search state before it is applied and persisted.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates st. The NoMatch sentinel is accepted as a current transform only in the
// exhausted phase.
func (h *EvalHarness) Run(st state.SearchState) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, format string, args ...any) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, fmt.Sprintf(format, args...))
		}
	}

	// 1. Step counter
	check("step", float64(st.Step), st.Step >= 0, "negative step %d", st.Step)
	if h.config.MaxSteps > 0 {
		check("step_budget", float64(st.Step), st.Step <= h.config.MaxSteps+1,
			"step %d beyond budget %d", st.Step, h.config.MaxSteps)
	}

	// 2. Fitness range
	for _, f := range []struct {
		name string
		v    float64
	}{{"fitness", st.CurrentFitness}, {"previous_fitness", st.PreviousFitness}} {
		check(f.name, f.v, f.v >= 0 && f.v <= 1, "%s %.4f outside [0,1]", f.name, f.v)
	}

	// 3. Rotation encodings
	check("rotation_code", float64(st.RotationCode), st.RotationCode.Valid(),
		"rotation code %d outside [0,%d)", st.RotationCode, transform.RotationCodes)
	check("rotation_index", float64(st.RotationIndex),
		st.RotationIndex >= 0 && st.RotationIndex < len(transform.Canonical),
		"rotation index %d outside canonical table", st.RotationIndex)

	// 4. Transforms
	for _, t := range []struct {
		name string
		tr   transform.Transform
	}{{"current", st.Current}, {"previous", st.Previous}} {
		if t.tr.IsNoMatch() {
			ok := t.name != "current" || st.Phase == state.PhaseExhausted
			check(t.name+"_sentinel", 0, ok, "%s transform is the no-match sentinel in phase %s", t.name, st.Phase)
			continue
		}
		_, rotOK := transform.EncodeRotation(t.tr.Rotation)
		check(t.name+"_rotation", 0, rotOK, "%s rotation %s outside [-2,1]", t.name, t.tr.Rotation)
		m := maxAbs(t.tr.Offset)
		check(t.name+"_offset", float64(m), m <= h.config.MaxOffset,
			"%s offset %s beyond +/-%d", t.name, t.tr.Offset, h.config.MaxOffset)
	}

	// 5. Cursors
	if len(st.Candidates) > 0 {
		check("candidate_cursor", float64(st.Cursor), st.Cursor >= 0 && st.Cursor <= len(st.Candidates),
			"cursor %d outside candidate list of %d", st.Cursor, len(st.Candidates))
	}
	if st.HasBox {
		vol := st.Box.Volume()
		check("lattice_cursor", float64(st.Cursor), st.Cursor >= 0 && st.Cursor <= vol,
			"cursor %d outside lattice of %d", st.Cursor, vol)
	}

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func maxAbs(v transform.Vec3) int {
	m := 0
	for axis := range 3 {
		c := v.Axis(axis)
		if c < 0 {
			c = -c
		}
		m = max(m, c)
	}
	return m
}

// #endregion helpers
