package lifecycle_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
)

func TestService_TransitionLegality(t *testing.T) {
	t.Parallel()

	// Explicit events only; start and expire are driven by reminders.
	events := []lifecycle.Event{
		lifecycle.EventActivate,
		lifecycle.EventCancel,
		lifecycle.EventSuspend,
		lifecycle.EventResume,
		lifecycle.EventDelete,
		lifecycle.EventRenew,
		lifecycle.EventFail,
	}

	// Allowed outcomes; a target equal to the source is an accepted no-op
	// (or, for renew, an in-place change). Anything missing must be rejected.
	allowed := map[lifecycle.Status]map[lifecycle.Event]lifecycle.Status{
		lifecycle.StatusPending: {
			lifecycle.EventActivate: lifecycle.StatusActive,
			lifecycle.EventSuspend:  lifecycle.StatusOnHold,
			lifecycle.EventDelete:   lifecycle.StatusDeleted,
			lifecycle.EventFail:     lifecycle.StatusFailed,
		},
		lifecycle.StatusPendingActivation: {
			lifecycle.EventActivate: lifecycle.StatusPendingActivation,
			lifecycle.EventCancel:   lifecycle.StatusCancelled,
			lifecycle.EventDelete:   lifecycle.StatusDeleted,
		},
		lifecycle.StatusReady: {
			lifecycle.EventActivate: lifecycle.StatusActive,
			lifecycle.EventCancel:   lifecycle.StatusCancelled,
			lifecycle.EventDelete:   lifecycle.StatusDeleted,
		},
		lifecycle.StatusActive: {
			lifecycle.EventActivate: lifecycle.StatusActive,
			lifecycle.EventCancel:   lifecycle.StatusCancelled,
			lifecycle.EventSuspend:  lifecycle.StatusOnHold,
			lifecycle.EventResume:   lifecycle.StatusActive,
			lifecycle.EventDelete:   lifecycle.StatusDeleted,
			lifecycle.EventRenew:    lifecycle.StatusActive,
		},
		lifecycle.StatusOnHold: {
			lifecycle.EventSuspend: lifecycle.StatusOnHold,
			lifecycle.EventResume:  lifecycle.StatusActive,
			lifecycle.EventDelete:  lifecycle.StatusDeleted,
		},
		lifecycle.StatusExpired: {},
		lifecycle.StatusCancelled: {
			lifecycle.EventCancel: lifecycle.StatusCancelled,
		},
		lifecycle.StatusFailed: {
			lifecycle.EventFail: lifecycle.StatusFailed,
		},
		lifecycle.StatusDeleted: {
			lifecycle.EventDelete: lifecycle.StatusDeleted,
		},
	}
	require.Len(t, allowed, len(lifecycle.Statuses))

	f := newFixture(t)
	ctx := context.Background()

	for _, from := range lifecycle.Statuses {
		for _, event := range events {
			id := fmt.Sprintf("%s-%s", from, event)
			want, ok := allowed[from][event]

			t.Run(id, func(t *testing.T) {
				t.Parallel()

				seeded := f.seed(t, id, from)

				got, err := f.svc.Apply(ctx, id, event)
				stored, getErr := f.svc.Get(ctx, id)
				require.NoError(t, getErr)

				if !ok {
					require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
					assert.Equal(t, seeded.Status, stored.Status)
					assert.True(t, seeded.UpdatedAt.Equal(stored.UpdatedAt))
					assert.Empty(t, stored.History)
					return
				}

				require.NoError(t, err)
				assert.Equal(t, want, got.Status)
				assert.Equal(t, want, stored.Status)
			})
		}
	}
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	transitions := lifecycle.Transitions()
	require.NotEmpty(t, transitions)

	for _, tr := range transitions {
		assert.NotNil(t, tr.From)
		assert.NotNil(t, tr.To)
		assert.NotNil(t, tr.Event)
		assert.NotEqual(t, lifecycle.StatusExpired, tr.From, "expired is terminal")
	}
}
