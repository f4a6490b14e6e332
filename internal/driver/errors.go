package driver

import (
	"errors"
	"fmt"
)

// #region sentinels
var (
	// ErrConfiguration: the tag resolves to zero or several devices.
	ErrConfiguration = errors.New("configuration error")
	// ErrDeviceNotReady: the device is unhealthy or its projection did not start.
	ErrDeviceNotReady = errors.New("device not ready")
	// ErrSearchExhausted: the candidate space ran out without convergence. Reported as a
	// warning; the last tried transform stays applied.
	ErrSearchExhausted = errors.New("search exhausted")
	// ErrStepBudget: the annealed climb ran past its step budget.
	ErrStepBudget = errors.New("step budget exceeded")
	// ErrInvalidState: the persisted state cannot be decoded or failed its sanity check,
	// or a collaborator panicked mid-tick.
	ErrInvalidState = errors.New("invalid state")
)

// #endregion sentinels

// #region tick-error
// TickError carries the taxonomy kind of a failed tick. errors.Is matches both the kind
// and the wrapped cause.
type TickError struct {
	Kind error
	Err  error
}

func (e *TickError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *TickError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func tickErr(kind error, format string, args ...any) *TickError {
	return &TickError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf names the taxonomy kind of err for metrics labels.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDeviceNotReady):
		return "device_not_ready"
	case errors.Is(err, ErrSearchExhausted):
		return "search_exhausted"
	case errors.Is(err, ErrStepBudget):
		return "step_budget"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "other"
	}
}

// #endregion tick-error
