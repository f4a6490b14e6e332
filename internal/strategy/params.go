package strategy

// #region params

// Params are the user-tunable knobs shared by all strategies. Zero MaxSteps selects the
// strategy's own default budget.
type Params struct {
	MaxSteps           int
	ForceAcceptPercent int     // random walk: chance in 100 to keep a non-improving move
	OffsetMovePercent  int     // random walk: chance in 100 to move the offset instead of the rotation
	ForceApplyRate     float64 // annealed: probability of mutating without improvement
	MutationRate       float64 // annealed: per-axis, per-direction nudge probability
	StallThreshold     int     // annealed: stalled steps tolerated before rotating
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		MaxSteps:           0,
		ForceAcceptPercent: 5,
		OffsetMovePercent:  95,
		ForceApplyRate:     0.01,
		MutationRate:       0.15,
		StallThreshold:     100,
	}
}

// Default step budgets per strategy. Zero means unbounded: the scans stop when their
// candidate space runs out.
const (
	defaultRandomWalkSteps = 10
	defaultAnnealedSteps   = 20000
)

func (p Params) maxSteps(fallback int) int {
	if p.MaxSteps > 0 {
		return p.MaxSteps
	}
	return fallback
}

// Budget is the effective step budget for id. Zero means unbounded.
func (p Params) Budget(id ID) int {
	switch id {
	case RandomWalk:
		return p.maxSteps(defaultRandomWalkSteps)
	case Annealed:
		return p.maxSteps(defaultAnnealedSteps)
	default:
		return p.maxSteps(0)
	}
}

// #endregion
