// Package statemachine provides a stateless finite-state-machine transition table.
//
// The package revolves around two minimal interfaces, State and Event, that
// leave you free to model domain specific states and events while the
// library handles:
//  1. Transition validation and lookup
//  2. Optional Guard evaluation to accept or reject transitions
//  3. Execution of side-effect Actions during transitions
//
// A Machine never stores a current state. The state of an entity lives with the
// entity (usually in a store); callers pass it to Fire and persist the state
// Fire returns. A Machine is immutable once built and safe for concurrent use.
//
// # Usage
//
//	const (
//	    Pending = statemachine.StringState("pending")
//	    Active  = statemachine.StringState("active")
//	    Expired = statemachine.StringState("expired")
//	    Activate = statemachine.StringEvent("activate")
//	    Expire   = statemachine.StringEvent("expire")
//	)
//
//	machine := statemachine.MustNew(
//	    statemachine.WithTransition(Pending, Active, Activate),
//	    statemachine.WithTransition(Active, Expired, Expire),
//	)
//
//	next, err := machine.Fire(ctx, entity.Status, Activate, entity)
//
// Targets and IsTarget expose where an event leads regardless of the current
// state, which lets callers treat a repeated event as a no-op:
//
//	if machine.IsTarget(Expire, entity.Status) {
//	    return nil // already expired
//	}
//
// # Guards and Actions
//
// Guards veto a transition based on runtime data. When several transitions
// share a from state and an event, the first one whose guards all pass wins.
// Actions run after the guards and before Fire returns the new state; an
// action error aborts the transition.
//
// # Error Handling
//
// Fire failures are *TransitionError values that unwrap to a sentinel:
//
//	if errors.Is(err, statemachine.ErrNoTransition) { /* ... */ }
//	if errors.Is(err, statemachine.ErrRejected)     { /* ... */ }
package statemachine
