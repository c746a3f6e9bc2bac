package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
	"github.com/dmitrymomot/actorkit/pkg/reminder"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type plan struct {
	Name   string        `json:"name"`
	Period time.Duration `json:"period"`
}

const (
	kind          = "subscription"
	collectionKey = "subscriptions"
	defaultPeriod = 30 * 24 * time.Hour
)

func testPolicy() lifecycle.Policy[plan] {
	return lifecycle.Policy[plan]{
		Kind:          kind,
		CollectionKey: collectionKey,
		Duration: func(e lifecycle.Entity[plan]) time.Duration {
			if e.Payload.Period > 0 {
				return e.Payload.Period
			}
			return defaultPeriod
		},
		Validate: func(p plan) error {
			if p.Name == "" {
				return errors.New("plan name is required")
			}
			return nil
		},
		AutoStart: true,
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeReminders records the reminders an entity keeps registered. failOn makes
// one operation fail until it is cleared.
type fakeReminders struct {
	mu    sync.Mutex
	armed map[string]reminder.Reminder
	fail  map[string]error
}

const (
	opRegister   = "register"
	opUnregister = "unregister"
)

func newFakeReminders() *fakeReminders {
	return &fakeReminders{
		armed: make(map[string]reminder.Reminder),
		fail:  make(map[string]error),
	}
}

func (f *fakeReminders) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeReminders) Register(_ context.Context, r reminder.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[opRegister]; err != nil {
		return err
	}
	f.armed[r.Key()] = r
	return nil
}

func (f *fakeReminders) Get(_ context.Context, actorType, actorID, name string) (reminder.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.armed[reminder.Key(actorType, actorID, name)]
	if !ok {
		return reminder.Reminder{}, reminder.ErrNotFound
	}
	return r, nil
}

func (f *fakeReminders) Unregister(_ context.Context, actorType, actorID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[opUnregister]; err != nil {
		return err
	}
	delete(f.armed, reminder.Key(actorType, actorID, name))
	return nil
}

func (f *fakeReminders) UnregisterAll(_ context.Context, actorType, actorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[opUnregister]; err != nil {
		return err
	}
	prefix := reminder.Key(actorType, actorID, "")
	for key := range f.armed {
		if strings.HasPrefix(key, prefix) {
			delete(f.armed, key)
		}
	}
	return nil
}

func (f *fakeReminders) armedFor(id, name string) (reminder.Reminder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.armed[reminder.Key(kind, id, name)]
	return r, ok
}

// dues returns the due time of every reminder of id, keyed by name.
func (f *fakeReminders) dues(id string) map[string]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := reminder.Key(kind, id, "")
	out := make(map[string]time.Time)
	for key, r := range f.armed {
		if strings.HasPrefix(key, prefix) {
			out[r.Name] = r.DueTime
		}
	}
	return out
}

// faultyStore fails writes of the keys passed to failSet until they are cleared.
type faultyStore struct {
	kvstore.Store

	mu   sync.Mutex
	keys map[string]error
}

func newFaultyStore(store kvstore.Store) *faultyStore {
	return &faultyStore{Store: store, keys: make(map[string]error)}
}

func (s *faultyStore) failSet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.keys, key)
		return
	}
	s.keys[key] = err
}

func (s *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	err := s.keys[key]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value)
}

type notes struct {
	mu      sync.Mutex
	changes []lifecycle.Change
}

func (n *notes) Notify(_ context.Context, c lifecycle.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return nil
}

func (n *notes) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

func (n *notes) count(to lifecycle.Status) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ch := range n.changes {
		if ch.To == to {
			c++
		}
	}
	return c
}

type fixture struct {
	svc       *lifecycle.Service[plan]
	rt        *actor.Runtime
	store     *kvstore.MemoryStore
	faults    *faultyStore
	reminders *fakeReminders
	clock     *clock
	notes     *notes
}

func newFixture(t *testing.T, mutate ...func(*lifecycle.Policy[plan])) *fixture {
	t.Helper()

	f := &fixture{
		rt:        actor.NewRuntime(actor.WithLogger(discard)),
		store:     kvstore.NewMemoryStore(),
		reminders: newFakeReminders(),
		clock:     newClock(),
		notes:     &notes{},
	}
	f.faults = newFaultyStore(f.store)
	t.Cleanup(func() { _ = f.rt.Stop(context.Background()) })

	policy := testPolicy()
	for _, m := range mutate {
		m(&policy)
	}

	svc, err := lifecycle.NewService(policy, f.rt, f.faults, f.reminders,
		lifecycle.WithClock(f.clock.Now),
		lifecycle.WithNotifier(f.notes),
		lifecycle.WithLogger(discard),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seed writes an entity record in the given status bypassing the actor.
func (f *fixture) seed(t *testing.T, id string, status lifecycle.Status) lifecycle.Entity[plan] {
	t.Helper()

	now := f.clock.Now()
	e := lifecycle.Entity[plan]{
		ID:        id,
		Kind:      kind,
		UserID:    "user-1",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   plan{Name: "basic"},
	}
	switch status {
	case lifecycle.StatusPendingActivation:
		start := now.Add(time.Hour)
		e.StartDate = &start
	case lifecycle.StatusPending, lifecycle.StatusOnHold, lifecycle.StatusFailed:
	default:
		start, end := now.Add(-time.Hour), now.Add(24*time.Hour)
		e.StartDate, e.EndDate = &start, &end
	}

	require.NoError(t, f.svc.Collection().Upsert(context.Background(), collectionKey, lifecycle.EntityKey(kind, id), e))
	return e
}

func (f *fixture) create(t *testing.T, id string) lifecycle.Entity[plan] {
	t.Helper()
	e, err := f.svc.Create(context.Background(), lifecycle.Entity[plan]{
		ID:      id,
		UserID:  "user-1",
		Payload: plan{Name: "basic"},
	})
	require.NoError(t, err)
	return e
}
