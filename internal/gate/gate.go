package gate

import "fmt"

// #region gate
// Gate decides whether the change applied on the previous tick is kept or rolled back.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate compares the fitness observed for the last applied change with the fitness
// recorded before it. A forced draw keeps the change regardless of the comparison.
func (g *Gate) Evaluate(previous, current float64, forced bool) GateDecision {
	delta := current - previous
	improved := delta > g.config.MinImprovement

	switch {
	case improved:
		return GateDecision{
			Action:   ActionKeep,
			Reason:   fmt.Sprintf("improved: %.4f -> %.4f", previous, current),
			Improved: true,
			Forced:   forced,
			Delta:    delta,
		}
	case forced:
		return GateDecision{
			Action: ActionKeep,
			Reason: fmt.Sprintf("forced accept: %.4f -> %.4f", previous, current),
			Forced: true,
			Delta:  delta,
		}
	default:
		return GateDecision{
			Action: ActionRollback,
			Reason: fmt.Sprintf("no improvement: %.4f -> %.4f", previous, current),
			Delta:  delta,
		}
	}
}

// #endregion gate
