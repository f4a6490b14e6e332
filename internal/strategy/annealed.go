package strategy

import (
	"fmt"

	"github.com/danielpatrickdp/projector-align/internal/gate"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region annealed

// identityCode decodes to the zero rotation.
const identityCode transform.RotationCode = 42

// annealed hill-climbs the offset under a fixed rotation and moves on to the next rotation
// code once fitness has stalled for longer than the threshold.
type annealed struct {
	params Params
	gate   *gate.Gate
}

func newAnnealed(p Params) *annealed {
	return &annealed{params: p, gate: gate.NewGate(gate.DefaultGateConfig())}
}

func (a *annealed) ID() ID { return Annealed }

func (a *annealed) Init(st state.SearchState) state.SearchState {
	st.RotationCode = identityCode
	st.Current = transform.Transform{Rotation: identityCode.Decode()}
	st.Previous = st.Current
	st.Seeded = false
	st.Stall = 0
	st.BestInRotation = 0
	return st
}

func (a *annealed) Step(st state.SearchState, r Reading, rng Rand) Result {
	if !st.Seeded {
		next := st.Clone()
		next.Seeded = true
		next.Previous = st.Current
		next.PreviousFitness = r.Fitness
		next.CurrentFitness = r.Fitness
		next.BestInRotation = r.Fitness
		return Result{
			Next:     next,
			Apply:    st.Current,
			Applies:  true,
			Outcome:  OutcomeContinue,
			Decision: DecisionSeed,
			Reason:   fmt.Sprintf("seeded at fitness %.4f", r.Fitness),
		}
	}
	if r.Fitness >= 1 {
		return converged(st, r)
	}
	budget := a.params.maxSteps(defaultAnnealedSteps)
	if st.Step > budget {
		next := st.Clone()
		next.CurrentFitness = r.Fitness
		return Result{
			Next:     next,
			Outcome:  OutcomeFatal,
			Decision: DecisionFatal,
			Reason:   fmt.Sprintf("step budget exceeded (%d of %d)", st.Step, budget),
		}
	}

	next := st.Clone()
	next.CurrentFitness = r.Fitness
	next.Step = st.Step + 1

	forced := rng.Float64() < a.params.ForceApplyRate
	d := a.gate.Evaluate(st.PreviousFitness, r.Fitness, forced)
	decision := DecisionRollback
	if d.Kept() {
		decision = DecisionKeep
		next.Previous = st.Current
		next.PreviousFitness = r.Fitness
		next.Current.Offset = a.mutate(st.Current.Offset, rng)
	} else {
		next.Current.Offset = st.Previous.Offset
	}

	escalated := false
	if r.Fitness > st.BestInRotation {
		next.BestInRotation = r.Fitness
		next.Stall = 0
	} else {
		next.Stall = st.Stall + 1
	}
	if next.Stall > a.params.StallThreshold {
		next.RotationCode = st.RotationCode.Next()
		next.BestInRotation = 0
		next.Stall = 0
		escalated = true
	}
	next.Current.Rotation = next.RotationCode.Decode()

	reason := d.Reason
	if escalated {
		reason = fmt.Sprintf("%s; stalled, rotation %d -> %d", reason, st.RotationCode, next.RotationCode)
	}
	return Result{
		Next:      next,
		Apply:     next.Current,
		Applies:   true,
		Outcome:   OutcomeContinue,
		Decision:  decision,
		Reason:    reason,
		Escalated: escalated,
	}
}

// mutate draws two independent rolls per axis, one for +1 and one for -1. Both can hit on
// the same step and cancel out.
func (a *annealed) mutate(off transform.Vec3, rng Rand) transform.Vec3 {
	for axis := range 3 {
		v := off.Axis(axis)
		if rng.Float64() < a.params.MutationRate {
			v++
		}
		if rng.Float64() < a.params.MutationRate {
			v--
		}
		off = off.WithAxis(axis, v)
	}
	return off
}

// #endregion
