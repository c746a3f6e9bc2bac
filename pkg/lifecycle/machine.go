package lifecycle

import (
	"context"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/statemachine"
)

// step is the data handed to guards and actions. Actions mutate the entity copy
// that is persisted once the transition is accepted.
type step[P any] struct {
	entity *Entity[P]
	now    time.Time
	policy Policy[P]
}

func stepOf[P any](data any) *step[P] {
	return data.(*step[P])
}

func newMachine[P any]() *statemachine.Machine {
	startsLater := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		s := stepOf[P](data)
		return s.entity.StartDate != nil && s.entity.StartDate.After(s.now)
	}
	started := func(ctx context.Context, from statemachine.State, event statemachine.Event, data any) bool {
		return !startsLater(ctx, from, event, data)
	}
	autoStart := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		return stepOf[P](data).policy.AutoStart
	}
	due := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		s := stepOf[P](data)
		return s.entity.EndDate != nil && !s.now.Before(*s.entity.EndDate)
	}
	schedule := func(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
		s := stepOf[P](data)
		if s.entity.StartDate == nil || s.entity.StartDate.After(s.now) {
			start := s.now
			s.entity.StartDate = &start
		}
		if s.entity.EndDate == nil {
			if d := s.policy.duration(*s.entity); d > 0 {
				end := s.entity.StartDate.Add(d)
				s.entity.EndDate = &end
			}
		}
		return nil
	}
	extend := func(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
		s := stepOf[P](data)
		d := s.policy.duration(*s.entity)
		if d <= 0 {
			return nil
		}
		from := s.now
		if s.entity.EndDate != nil && s.entity.EndDate.After(from) {
			from = *s.entity.EndDate
		}
		end := from.Add(d)
		s.entity.EndDate = &end
		return nil
	}

	return statemachine.MustNew(
		statemachine.WithTransition(StatusPending, StatusPendingActivation, EventActivate,
			statemachine.WithGuard(startsLater)),
		statemachine.WithTransition(StatusPending, StatusActive, EventActivate,
			statemachine.WithAction(schedule)),
		statemachine.WithTransition(StatusReady, StatusActive, EventActivate,
			statemachine.WithAction(schedule)),

		statemachine.WithTransition(StatusPendingActivation, StatusActive, EventStart,
			statemachine.WithGuards(started, autoStart), statemachine.WithAction(schedule)),
		statemachine.WithTransition(StatusPendingActivation, StatusReady, EventStart,
			statemachine.WithGuard(started)),

		statemachine.WithTransition(StatusActive, StatusExpired, EventExpire,
			statemachine.WithGuard(due)),

		statemachine.WithTransitionFrom(
			[]statemachine.State{StatusActive, StatusPendingActivation, StatusReady},
			StatusCancelled, EventCancel),

		statemachine.WithTransitionFrom(
			[]statemachine.State{StatusActive, StatusPending},
			StatusOnHold, EventSuspend),
		statemachine.WithTransition(StatusOnHold, StatusActive, EventResume,
			statemachine.WithAction(schedule)),

		statemachine.WithTransitionFrom(
			[]statemachine.State{StatusPending, StatusPendingActivation, StatusReady, StatusActive, StatusOnHold},
			StatusDeleted, EventDelete),

		statemachine.WithTransition(StatusPending, StatusFailed, EventFail),

		statemachine.WithTransition(StatusActive, StatusActive, EventRenew,
			statemachine.WithAction(extend)),
	)
}

// Transitions returns the lifecycle transition table.
func Transitions() []statemachine.Transition {
	return newMachine[struct{}]().Transitions()
}
