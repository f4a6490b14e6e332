package strategy

import (
	"github.com/danielpatrickdp/projector-align/internal/candidates"
	"github.com/danielpatrickdp/projector-align/internal/fitness"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/transform"
)

// #region strategy-id

// ID identifies a search strategy.
type ID string

const (
	RandomWalk  ID = "random-walk"
	CellScan    ID = "cell-scan"
	LatticeScan ID = "lattice-scan"
	Annealed    ID = "annealed"
)

// Stochastic reports whether the strategy draws from a random source.
func (id ID) Stochastic() bool {
	return id == RandomWalk || id == Annealed
}

// #endregion

// #region outcome

// Outcome is what a step tells the caller about scheduling.
type Outcome string

const (
	OutcomeContinue  Outcome = "continue"
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFatal     Outcome = "fatal"
)

// #endregion

// #region decision

// Decision names what a step did, for provenance and status lines.
type Decision string

const (
	DecisionKeep      Decision = "keep"
	DecisionRollback  Decision = "rollback"
	DecisionSeed      Decision = "seed"
	DecisionScan      Decision = "scan"
	DecisionConverged Decision = "converged"
	DecisionExhausted Decision = "exhausted"
	DecisionFatal     Decision = "fatal"
)

// #endregion

// #region reading

// Reading is what the oracle observed for the transform applied on the previous tick.
type Reading struct {
	Counters fitness.Counters
	Fitness  float64
	// Occupied holds structure cells in the device frame.
	Occupied candidates.Occupancy
}

// NewReading scores counters into a Reading.
func NewReading(c fitness.Counters, occupied candidates.Occupancy) Reading {
	return Reading{Counters: c, Fitness: fitness.Score(c), Occupied: occupied}
}

// #endregion

// #region rand

// Rand is the random source a step draws from. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// #endregion

// #region result

// Result is the outcome of one step.
type Result struct {
	Next     state.SearchState
	Apply    transform.Transform
	Applies  bool // false when the device transform must stay as it is
	Outcome  Outcome
	Decision Decision
	Reason   string

	// Escalated is set when the annealed climb advanced its rotation this step.
	Escalated bool
}

// #endregion

// #region interfaces

// Strategy produces the next transform to try from the persisted state and the latest
// reading. Implementations hold configuration only; all progress lives in SearchState.
type Strategy interface {
	ID() ID
	// Init returns the starting state for a fresh search. Its Current transform is applied
	// on activation before the first Step.
	Init(st state.SearchState) state.SearchState
	Step(st state.SearchState, r Reading, rng Rand) Result
}

// Preparer is implemented by strategies that derive their candidate space from the
// existing structure. Prepare is called before every Step and must leave an already
// prepared state untouched.
type Preparer interface {
	Prepare(st state.SearchState, occupied []transform.Vec3, origin transform.Vec3) state.SearchState
}

// #endregion

// #region helpers

func converged(st state.SearchState, r Reading) Result {
	next := st.Clone()
	next.CurrentFitness = r.Fitness
	return Result{
		Next:     next,
		Outcome:  OutcomeSuccess,
		Decision: DecisionConverged,
		Reason:   "fitness reached 1",
	}
}

func exhausted(st state.SearchState, r Reading, sentinel bool, reason string) Result {
	next := st.Clone()
	next.CurrentFitness = r.Fitness
	if sentinel {
		next.Previous = st.Current
		next.Current = transform.NoMatch
	}
	return Result{
		Next:     next,
		Outcome:  OutcomeExhausted,
		Decision: DecisionExhausted,
		Reason:   reason,
	}
}

// #endregion
