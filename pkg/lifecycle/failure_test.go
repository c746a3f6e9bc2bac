package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
)

type transitionCase struct {
	name  string
	setup func(t *testing.T, f *fixture, id string)
	run   func(ctx context.Context, f *fixture, id string) error
	want  lifecycle.Status
	// registersFirst is set when the transition adds a reminder before its write.
	registersFirst bool
}

func activated(t *testing.T, f *fixture, id string) {
	t.Helper()
	f.create(t, id)
	_, err := f.svc.Activate(context.Background(), id)
	require.NoError(t, err)
}

func transitionCases() []transitionCase {
	apply := func(op func(*lifecycle.Service[plan], context.Context, string) (lifecycle.Entity[plan], error)) func(context.Context, *fixture, string) error {
		return func(ctx context.Context, f *fixture, id string) error {
			_, err := op(f.svc, ctx, id)
			return err
		}
	}

	return []transitionCase{
		{
			name:           "activate",
			setup:          func(t *testing.T, f *fixture, id string) { f.create(t, id) },
			run:            apply((*lifecycle.Service[plan]).Activate),
			want:           lifecycle.StatusActive,
			registersFirst: true,
		},
		{
			name: "activate with future start",
			setup: func(t *testing.T, f *fixture, id string) {
				start := f.clock.Now().Add(time.Hour)
				_, err := f.svc.Create(context.Background(), lifecycle.Entity[plan]{
					ID: id, UserID: "user-1", StartDate: &start, Payload: plan{Name: "basic"},
				})
				require.NoError(t, err)
			},
			run:            apply((*lifecycle.Service[plan]).Activate),
			want:           lifecycle.StatusPendingActivation,
			registersFirst: true,
		},
		{
			name: "start reminder",
			setup: func(t *testing.T, f *fixture, id string) {
				start := f.clock.Now().Add(time.Hour)
				_, err := f.svc.Create(context.Background(), lifecycle.Entity[plan]{
					ID: id, UserID: "user-1", StartDate: &start, Payload: plan{Name: "basic"},
				})
				require.NoError(t, err)
				_, err = f.svc.Activate(context.Background(), id)
				require.NoError(t, err)
				f.clock.Advance(time.Hour)
			},
			run: func(ctx context.Context, f *fixture, id string) error {
				return f.rt.DeliverReminder(ctx, kind, id, lifecycle.DefaultStartReminder, nil, f.clock.Now(), 0)
			},
			want:           lifecycle.StatusActive,
			registersFirst: true,
		},
		{
			name: "resume",
			setup: func(t *testing.T, f *fixture, id string) {
				activated(t, f, id)
				_, err := f.svc.Suspend(context.Background(), id)
				require.NoError(t, err)
			},
			run:            apply((*lifecycle.Service[plan]).Resume),
			want:           lifecycle.StatusActive,
			registersFirst: true,
		},
		{
			name:  "renew",
			setup: activated,
			run:   apply((*lifecycle.Service[plan]).Renew),
			want:  lifecycle.StatusActive,
		},
		{
			name:  "suspend",
			setup: activated,
			run:   apply((*lifecycle.Service[plan]).Suspend),
			want:  lifecycle.StatusOnHold,
		},
		{
			name:  "cancel",
			setup: activated,
			run:   apply((*lifecycle.Service[plan]).Cancel),
			want:  lifecycle.StatusCancelled,
		},
		{
			name:  "soft delete",
			setup: activated,
			run:   apply((*lifecycle.Service[plan]).SoftDelete),
			want:  lifecycle.StatusDeleted,
		},
		{
			name: "expiry",
			setup: func(t *testing.T, f *fixture, id string) {
				activated(t, f, id)
				f.clock.Advance(defaultPeriod)
			},
			run: func(ctx context.Context, f *fixture, id string) error {
				return f.rt.DeliverReminder(ctx, kind, id, lifecycle.DefaultExpiryReminder, nil, f.clock.Now(), 0)
			},
			want: lifecycle.StatusExpired,
		},
	}
}

func stored(t *testing.T, f *fixture, id string) lifecycle.Entity[plan] {
	t.Helper()
	e, err := f.svc.Collection().Get(context.Background(), lifecycle.EntityKey(kind, id))
	require.NoError(t, err)
	return e
}

// requireRemindersCover checks that every reminder the stored status needs is
// registered no later than its date, and that firing whatever is registered
// leaves a not yet due entity where it is.
func requireRemindersCover(t *testing.T, f *fixture, id string) {
	t.Helper()
	ctx := context.Background()

	e := stored(t, f, id)
	dues := f.reminders.dues(id)
	switch e.Status {
	case lifecycle.StatusActive:
		require.NotNil(t, e.EndDate)
		due, ok := dues[lifecycle.DefaultExpiryReminder]
		require.True(t, ok, "active entity without expiry reminder")
		assert.False(t, due.After(*e.EndDate), "expiry reminder later than end date")
	case lifecycle.StatusPendingActivation:
		require.NotNil(t, e.StartDate)
		due, ok := dues[lifecycle.DefaultStartReminder]
		require.True(t, ok, "pending activation without start reminder")
		assert.False(t, due.After(*e.StartDate), "start reminder later than start date")
	}

	for name, due := range dues {
		require.NoError(t, f.rt.DeliverReminder(ctx, kind, id, name, nil, due, 0))
	}
	if e.EndDate == nil || f.clock.Now().Before(*e.EndDate) {
		assert.Equal(t, e.Status, stored(t, f, id).Status)
	}
}

func TestEntity_WriteFailureLeavesNoPartialState(t *testing.T) {
	t.Parallel()

	for _, tc := range transitionCases() {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ctx := context.Background()
			const id = "sub-1"
			tc.setup(t, f, id)

			before := stored(t, f, id)
			dues := f.reminders.dues(id)
			changes := f.notes.total()

			f.faults.failSet(lifecycle.EntityKey(kind, id), kvstore.ErrStoreUnavailable)
			err := tc.run(ctx, f, id)
			require.ErrorIs(t, err, kvstore.ErrStoreUnavailable)

			after := stored(t, f, id)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
			assert.Equal(t, dues, f.reminders.dues(id))
			assert.Equal(t, changes, f.notes.total())

			f.faults.failSet(lifecycle.EntityKey(kind, id), nil)
			require.NoError(t, tc.run(ctx, f, id))
			assert.Equal(t, tc.want, stored(t, f, id).Status)
			assert.Equal(t, changes+1, f.notes.total())
			requireRemindersCover(t, f, id)
		})
	}
}

func TestEntity_ReminderFailureDuringTransition(t *testing.T) {
	t.Parallel()

	for _, op := range []string{opRegister, opUnregister} {
		for _, tc := range transitionCases() {
			t.Run(op+" "+tc.name, func(t *testing.T) {
				t.Parallel()

				f := newFixture(t)
				ctx := context.Background()
				const id = "sub-1"
				tc.setup(t, f, id)

				before := stored(t, f, id)
				dues := f.reminders.dues(id)
				changes := f.notes.total()

				f.reminders.failOn(op, kvstore.ErrStoreUnavailable)
				err := tc.run(ctx, f, id)
				f.reminders.failOn(op, nil)

				if op == opRegister && tc.registersFirst {
					require.ErrorIs(t, err, kvstore.ErrStoreUnavailable)
					assert.Equal(t, before.Status, stored(t, f, id).Status)
					assert.Equal(t, dues, f.reminders.dues(id))
					assert.Equal(t, changes, f.notes.total())
					return
				}

				// The write landed: the change is reported and whatever the
				// reminder scheduler kept is harmless.
				require.NoError(t, err)
				assert.Equal(t, tc.want, stored(t, f, id).Status)
				assert.Equal(t, changes+1, f.notes.total())
				requireRemindersCover(t, f, id)
			})
		}
	}
}

func TestEntity_ActivationRestoresMissingReminder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	activated(t, f, "sub-1")
	e := stored(t, f, "sub-1")

	// Lost while the actor was inactive.
	require.NoError(t, f.rt.Deactivate(ctx, actor.ID{Type: kind, ID: "sub-1"}))
	require.NoError(t, f.reminders.UnregisterAll(ctx, kind, "sub-1"))

	_, err := f.svc.Get(ctx, "sub-1")
	require.NoError(t, err)

	r, ok := f.reminders.armedFor("sub-1", lifecycle.DefaultExpiryReminder)
	require.True(t, ok)
	assert.True(t, r.DueTime.Equal(*e.EndDate))
}

func TestService_SetData_RejectsEndBeforeStoredStart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now().Add(time.Hour)
	_, err := f.svc.Create(ctx, lifecycle.Entity[plan]{ID: "sub-1", UserID: "user-1", StartDate: &start, Payload: plan{Name: "basic"}})
	require.NoError(t, err)

	end := start.Add(-time.Minute)
	_, err = f.svc.SetData(ctx, lifecycle.Entity[plan]{ID: "sub-1", UserID: "user-1", EndDate: &end, Payload: plan{Name: "basic"}})
	require.ErrorIs(t, err, lifecycle.ErrValidation)

	assert.Nil(t, stored(t, f, "sub-1").EndDate)
}
