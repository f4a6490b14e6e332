package eval

// #region eval-config
// EvalConfig holds the bounds a proposed search state must respect.
type EvalConfig struct {
	MaxOffset int // reject offsets with any component beyond +/- this
	MaxSteps  int // zero disables the step bound
}

// DefaultEvalConfig returns bounds wide enough for any structure a device can hold.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxOffset: 1 << 16,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of a state check.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
