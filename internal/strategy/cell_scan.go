package strategy

import (
	"fmt"

	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region cell-scan

// cellScan tries every canonical rotation at every occupied structure cell, nearest cells
// first. Rotation advances fastest.
type cellScan struct {
	params Params
}

func (c *cellScan) ID() ID { return CellScan }

func (c *cellScan) Init(st state.SearchState) state.SearchState {
	st.Current = transform.Transform{}
	st.Previous = transform.Transform{}
	st.Cursor = 0
	st.RotationIndex = 0
	return st
}

// Prepare builds the candidate list once; a non-empty persisted list is kept as is.
func (c *cellScan) Prepare(st state.SearchState, occupied []transform.Vec3, origin transform.Vec3) state.SearchState {
	if len(st.Candidates) > 0 {
		return st
	}
	st.Candidates = candidates.Build(occupied, origin)
	return st
}

func (c *cellScan) Step(st state.SearchState, r Reading, _ Rand) Result {
	if r.Fitness >= 1 {
		return converged(st, r)
	}
	if budget := c.params.maxSteps(0); budget > 0 && st.Step > budget {
		return exhausted(st, r, false, fmt.Sprintf("max steps reached (%d of %d)", st.Step, budget))
	}
	if st.Cursor >= len(st.Candidates) {
		return exhausted(st, r, true, fmt.Sprintf("all %d candidate cells tried", len(st.Candidates)))
	}

	rot := st.RotationIndex
	if rot < 0 || rot >= len(transform.Canonical) {
		rot = 0
	}
	t := transform.Transform{
		Offset:   st.Candidates[st.Cursor],
		Rotation: transform.Canonical[rot],
	}

	next := st.Clone()
	next.CurrentFitness = r.Fitness
	next.Step = st.Step + 1
	next.Previous = st.Current
	next.Current = t
	next.RotationIndex = rot + 1
	if next.RotationIndex >= len(transform.Canonical) {
		next.RotationIndex = 0
		next.Cursor = st.Cursor + 1
	}

	return Result{
		Next:     next,
		Apply:    t,
		Applies:  true,
		Outcome:  OutcomeContinue,
		Decision: DecisionScan,
		Reason:   fmt.Sprintf("cell %d/%d rotation %d/%d", st.Cursor+1, len(st.Candidates), rot+1, len(transform.Canonical)),
	}
}

// #endregion
