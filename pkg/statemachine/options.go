package statemachine

import (
	"fmt"
)

// Option configures a Machine during construction.
type Option func(*Machine) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption func(*Transition)

// New builds a Machine from the given transitions.
func New(opts ...Option) (*Machine, error) {
	m := newMachine()
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is like New but panics on an invalid definition.
func MustNew(opts ...Option) *Machine {
	m, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// WithTransition adds a single transition.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Machine) error {
		t := Transition{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		return m.add(t)
	}
}

// WithTransitionFrom adds the same transition from each state in from.
func WithTransitionFrom(from []State, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Machine) error {
		for _, f := range from {
			if err := WithTransition(f, to, event, opts...)(m); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithTransitions adds multiple transitions at once.
func WithTransitions(transitions []Transition) Option {
	return func(m *Machine) error {
		for i, t := range transitions {
			if err := m.add(t); err != nil {
				return fmt.Errorf("failed to add transition[%d] %s->%s on %s: %w",
					i, nameOf(t.From), nameOf(t.To), nameOf(t.Event), err)
			}
		}
		return nil
	}
}

func nameOf(v interface{ Name() string }) string {
	if v == nil {
		return "<nil>"
	}
	return v.Name()
}

// WithGuard adds a single guard to a transition.
func WithGuard(guard Guard) TransitionOption {
	return WithGuards(guard)
}

// WithGuards adds multiple guards to a transition.
func WithGuards(guards ...Guard) TransitionOption {
	return func(t *Transition) {
		for _, guard := range guards {
			if guard != nil {
				t.Guards = append(t.Guards, guard)
			}
		}
	}
}

// WithAction adds a single action to a transition.
func WithAction(action Action) TransitionOption {
	return WithActions(action)
}

// WithActions adds multiple actions to a transition.
func WithActions(actions ...Action) TransitionOption {
	return func(t *Transition) {
		for _, action := range actions {
			if action != nil {
				t.Actions = append(t.Actions, action)
			}
		}
	}
}
