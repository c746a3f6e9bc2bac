package statemachine

import (
	"context"
	"fmt"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Action executes side effects during a transition. Returning an error prevents the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // All must pass for transition to proceed
	Actions []Action // Executed in order before the new state is returned
}

// Machine is an immutable transition table. It holds no current state: callers
// pass the state they loaded and persist the state Fire returns, so one Machine
// serves any number of entities concurrently.
type Machine struct {
	// [fromState][event] -> candidates in registration order
	transitions map[string]map[string][]Transition
	ordered     []Transition
}

func newMachine() *Machine {
	return &Machine{transitions: make(map[string]map[string][]Transition)}
}

func (m *Machine) add(t Transition) error {
	if t.From == nil || t.To == nil || t.Event == nil {
		return ErrInvalidTransition
	}

	from, event := t.From.Name(), t.Event.Name()
	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[string][]Transition)
	}

	// Multiple transitions for the same from/event support guard-based branching.
	m.transitions[from][event] = append(m.transitions[from][event], t)
	m.ordered = append(m.ordered, t)
	return nil
}

// Fire resolves event from current and returns the target state.
// The first candidate whose guards all pass wins. Its actions run in order and
// any failure aborts the transition.
func (m *Machine) Fire(ctx context.Context, current State, event Event, data any) (State, error) {
	if current == nil {
		return nil, ErrInvalidState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	candidates := m.transitions[current.Name()][event.Name()]
	if len(candidates) == 0 {
		return current, &TransitionError{State: current.Name(), Event: event.Name(), Err: ErrNoTransition}
	}

	t, ok := pick(ctx, candidates, current, event, data)
	if !ok {
		return current, &TransitionError{State: current.Name(), Event: event.Name(), Err: ErrRejected}
	}

	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, current, t.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}

	return t.To, nil
}

// CanFire reports whether Fire would find a transition whose guards pass.
// Actions are not run.
func (m *Machine) CanFire(ctx context.Context, current State, event Event, data any) bool {
	if current == nil || event == nil {
		return false
	}
	_, ok := pick(ctx, m.transitions[current.Name()][event.Name()], current, event, data)
	return ok
}

// Targets returns the distinct states event can lead to, from any state.
func (m *Machine) Targets(event Event) []State {
	if event == nil {
		return nil
	}

	var targets []State
	seen := make(map[string]bool)
	for _, t := range m.ordered {
		if t.Event.Name() != event.Name() || seen[t.To.Name()] {
			continue
		}
		seen[t.To.Name()] = true
		targets = append(targets, t.To)
	}
	return targets
}

// IsTarget reports whether state is one of the targets of event.
func (m *Machine) IsTarget(event Event, state State) bool {
	if state == nil {
		return false
	}
	for _, t := range m.Targets(event) {
		if t.Name() == state.Name() {
			return true
		}
	}
	return false
}

// Transitions returns every transition in registration order.
func (m *Machine) Transitions() []Transition {
	out := make([]Transition, len(m.ordered))
	copy(out, m.ordered)
	return out
}

func pick(ctx context.Context, candidates []Transition, current State, event Event, data any) (Transition, bool) {
	for _, t := range candidates {
		passed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, current, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return t, true
		}
	}
	return Transition{}, false
}

// StringState provides a simple string-based state implementation for basic use cases.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a simple string-based event implementation for basic use cases.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
