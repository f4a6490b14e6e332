package strategy

import (
	"fmt"

	"github.com/danielpatrickdp/projector-align/internal/gate"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region random-walk

// randomWalk nudges one axis per step and restores the previous placement whenever the
// nudge did not pay off.
type randomWalk struct {
	params Params
	gate   *gate.Gate
}

func newRandomWalk(p Params) *randomWalk {
	return &randomWalk{params: p, gate: gate.NewGate(gate.DefaultGateConfig())}
}

func (w *randomWalk) ID() ID { return RandomWalk }

func (w *randomWalk) Init(st state.SearchState) state.SearchState {
	st.Current = transform.Transform{}
	st.Previous = transform.Transform{}
	return st
}

// Step draws, in order: the force-accept roll, then on keep the axis, the direction and
// the offset-or-rotation roll.
func (w *randomWalk) Step(st state.SearchState, r Reading, rng Rand) Result {
	if r.Fitness >= 1 {
		return converged(st, r)
	}
	budget := w.params.maxSteps(defaultRandomWalkSteps)
	if st.Step > budget {
		return exhausted(st, r, false, fmt.Sprintf("max steps reached (%d of %d)", st.Step, budget))
	}

	next := st.Clone()
	next.CurrentFitness = r.Fitness
	next.Step = st.Step + 1

	forced := rng.IntN(100) < w.params.ForceAcceptPercent
	d := w.gate.Evaluate(st.PreviousFitness, r.Fitness, forced)
	if !d.Kept() {
		next.Current = st.Previous
		return Result{
			Next:     next,
			Apply:    st.Previous,
			Applies:  true,
			Outcome:  OutcomeContinue,
			Decision: DecisionRollback,
			Reason:   d.Reason,
		}
	}

	next.Previous = st.Current
	next.PreviousFitness = r.Fitness

	axis := rng.IntN(3)
	dir := 1
	if rng.IntN(2) == 0 {
		dir = -1
	}
	moved := st.Current
	what := "offset"
	if rng.IntN(100) < w.params.OffsetMovePercent {
		moved.Offset = moved.Offset.WithAxis(axis, moved.Offset.Axis(axis)+dir)
	} else {
		what = "rotation"
		moved.Rotation = moved.Rotation.WithAxis(axis, transform.WrapQuarter(moved.Rotation.Axis(axis)+dir))
	}
	next.Current = moved

	return Result{
		Next:     next,
		Apply:    moved,
		Applies:  true,
		Outcome:  OutcomeContinue,
		Decision: DecisionKeep,
		Reason:   fmt.Sprintf("%s; %s axis %d by %+d", d.Reason, what, axis, dir),
	}
}

// #endregion
