package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidEvent      = errors.New("statemachine: nil event")
	ErrInvalidState      = errors.New("statemachine: nil current state")

	// ErrNoTransition means no transition is defined for the state and event.
	ErrNoTransition = errors.New("statemachine: no transition")
	// ErrRejected means transitions exist but every guard refused.
	ErrRejected = errors.New("statemachine: rejected by guards")
)

// TransitionError reports which state and event a Fire call failed on.
// It unwraps to ErrNoTransition or ErrRejected.
type TransitionError struct {
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: state %q, event %q", e.Err, e.State, e.Event)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
