package state

import (
	"time"

	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region phase
// Phase is the alignment driver's position in its state machine.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseActivating    Phase = "activating"
	PhaseSearching     Phase = "searching"
	PhaseConverged     Phase = "converged"
	PhaseExhausted     Phase = "exhausted"
	PhaseFailed        Phase = "failed"
)

// Terminal reports whether no further search step should be taken in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseConverged || p == PhaseExhausted || p == PhaseFailed
}

// #endregion phase

// #region search-state
// SearchState is everything a search needs to resume on the next tick. Fields not used by
// the active strategy stay at their zero value.
type SearchState struct {
	Strategy string
	Phase    Phase
	Step     int

	Current         transform.Transform
	Previous        transform.Transform
	CurrentFitness  float64
	PreviousFitness float64

	// Seeded is set once the first reading has been recorded without a move.
	Seeded bool

	// Annealed hill-climb bookkeeping.
	Stall          int
	BestInRotation float64

	// Rotation cursor: a flattened code for the lattice strategies, an index into
	// transform.Canonical for the cell scan.
	RotationCode  transform.RotationCode
	RotationIndex int

	// Cell cursor into Candidates or into the Box lattice.
	Cursor     int
	Candidates []transform.Vec3
	Box        candidates.Box
	HasBox     bool

	// Seed is the random seed drawn for the most recent tick.
	Seed uint64
}

// New returns the empty state for a fresh search with the given strategy.
func New(strategy string) SearchState {
	return SearchState{
		Strategy: strategy,
		Phase:    PhaseUninitialized,
	}
}

// Clone returns a deep copy of s.
func (s SearchState) Clone() SearchState {
	out := s
	if s.Candidates != nil {
		out.Candidates = make([]transform.Vec3, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	return out
}

// #endregion search-state

// #region state-record
// StateRecord is one persisted version of a device's search state.
type StateRecord struct {
	VersionID string
	ParentID  string
	DeviceKey string
	Blob      string
	CreatedAt time.Time
}

// #endregion state-record

// #region version-with-provenance
// VersionWithProvenance pairs a state version with its provenance row fields.
type VersionWithProvenance struct {
	StateRecord
	Decision    string
	Reason      string
	ReadingJSON string
}

// #endregion version-with-provenance
