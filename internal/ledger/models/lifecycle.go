package models

import (
	dErrors "custodia/pkg/domain-errors"
)

// LifecycleState is the contract-wide operational state.
//
// Invariants:
//   - Transitions are Active → Paused, Paused → Active, Paused → Deactivated
//   - Deactivated is terminal; nothing clears it
//   - Deactivation requires the Paused state first, making shutdown an
//     explicit two-step action with a visible warning window for holders
//
// The state is a single enum with a transition function, never a pair of
// booleans, so an illegal combination like "unpaused but deactivated" cannot
// be represented at all.
type LifecycleState uint8

const (
	StateActive LifecycleState = iota
	StatePaused
	StateDeactivated
)

func (s LifecycleState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// CanTransitionTo reports whether the transition is legal.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	switch s {
	case StateActive:
		return next == StatePaused
	case StatePaused:
		return next == StateActive || next == StateDeactivated
	case StateDeactivated:
		return false
	default:
		return false
	}
}

// Transition validates and returns the next state.
// Errors: CodeInvariantViolation for any illegal transition, with a message
// naming the offending pair.
func (s LifecycleState) Transition(next LifecycleState) (LifecycleState, error) {
	if !s.CanTransitionTo(next) {
		return s, dErrors.Newf(dErrors.CodeInvariantViolation,
			"illegal lifecycle transition %s -> %s", s, next)
	}
	return next, nil
}

// ParseLifecycleState constructs a LifecycleState from its string form,
// used when loading persisted state.
func ParseLifecycleState(s string) (LifecycleState, error) {
	switch s {
	case "active":
		return StateActive, nil
	case "paused":
		return StatePaused, nil
	case "deactivated":
		return StateDeactivated, nil
	default:
		return StateActive, dErrors.Newf(dErrors.CodeInvalidInput, "unknown lifecycle state %q", s)
	}
}
