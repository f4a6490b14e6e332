package gate

// #region action
// Action is the outcome of a keep-or-rollback evaluation.
type Action string

const (
	ActionKeep     Action = "keep"
	ActionRollback Action = "rollback"
)

// #endregion action

// #region gate-config
// GateConfig holds the acceptance threshold.
type GateConfig struct {
	// MinImprovement is how far the new fitness must exceed the previous one to count as
	// an improvement. Zero means any strict increase.
	MinImprovement float64
}

// DefaultGateConfig accepts any strict improvement.
func DefaultGateConfig() GateConfig {
	return GateConfig{MinImprovement: 0}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action   Action
	Reason   string
	Improved bool
	Forced   bool
	Delta    float64 // current - previous fitness
}

// Kept reports whether the last applied change survives.
func (d GateDecision) Kept() bool {
	return d.Action == ActionKeep
}

// #endregion gate-decision
