package strategy

import (
	"fmt"

	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region lattice-scan

// latticeScan walks every free cell of the structure's bounding box in row-major order and
// tries all 64 rotation codes at each one.
type latticeScan struct {
	params Params
}

func (l *latticeScan) ID() ID { return LatticeScan }

func (l *latticeScan) Init(st state.SearchState) state.SearchState {
	st.Current = transform.Transform{}
	st.Previous = transform.Transform{}
	st.Cursor = 0
	st.RotationCode = 0
	return st
}

// Prepare fixes the bounding box of the structure in the device frame once.
func (l *latticeScan) Prepare(st state.SearchState, occupied []transform.Vec3, origin transform.Vec3) state.SearchState {
	if st.HasBox {
		return st
	}
	st.Box, st.HasBox = candidates.BoundsOf(candidates.Local(occupied, origin))
	return st
}

func (l *latticeScan) Step(st state.SearchState, r Reading, _ Rand) Result {
	if r.Fitness >= 1 {
		return converged(st, r)
	}
	if budget := l.params.maxSteps(0); budget > 0 && st.Step > budget {
		return exhausted(st, r, false, fmt.Sprintf("max steps reached (%d of %d)", st.Step, budget))
	}
	if !st.HasBox {
		return exhausted(st, r, true, "structure has no cells to bound")
	}

	vol := st.Box.Volume()
	code := st.RotationCode
	if !code.Valid() {
		code = 0
	}
	cursor := st.Cursor
	// Occupied cells are skipped only when entering a cell, so a cell that becomes
	// occupied mid-rotation still finishes its 64 codes.
	if code == 0 {
		cursor = st.Box.NextFree(cursor, r.Occupied)
	}
	if cursor >= vol {
		return exhausted(st, r, true, fmt.Sprintf("lattice of %d cells exhausted", vol))
	}

	cell, _ := st.Box.At(cursor)
	t := transform.Transform{Offset: cell, Rotation: code.Decode()}

	next := st.Clone()
	next.CurrentFitness = r.Fitness
	next.Step = st.Step + 1
	next.Previous = st.Current
	next.Current = t
	next.RotationCode = code.Next()
	next.Cursor = cursor
	if next.RotationCode == 0 {
		next.Cursor = cursor + 1
	}

	return Result{
		Next:     next,
		Apply:    t,
		Applies:  true,
		Outcome:  OutcomeContinue,
		Decision: DecisionScan,
		Reason:   fmt.Sprintf("lattice %d/%d code %d", cursor+1, vol, code),
	}
}

// #endregion
