package actor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/actor"
)

type counter struct {
	n         int
	inTurn    *atomic.Int32
	maxInTurn *atomic.Int32
}

func (c *counter) Dispatch(_ context.Context, method string, arg []byte) ([]byte, error) {
	switch method {
	case "add":
		delta, err := strconv.Atoi(string(arg))
		if err != nil {
			return nil, err
		}
		c.n += delta
		return []byte(strconv.Itoa(c.n)), nil
	case "get":
		return []byte(strconv.Itoa(c.n)), nil
	default:
		return nil, actor.ErrMethodNotFound
	}
}

type lifecycleActor struct {
	activations   *atomic.Int32
	deactivations *atomic.Int32
	live          *atomic.Int32
	maxLive       *atomic.Int32
	deactivateFor time.Duration
	reminders     chan actor.Reminder
}

func (a *lifecycleActor) OnActivate(context.Context) error {
	a.activations.Add(1)
	n := a.live.Add(1)
	for {
		m := a.maxLive.Load()
		if n <= m || a.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	return nil
}

func (a *lifecycleActor) OnDeactivate(context.Context) error {
	time.Sleep(a.deactivateFor)
	a.deactivations.Add(1)
	a.live.Add(-1)
	return nil
}

func (a *lifecycleActor) ReceiveReminder(_ context.Context, r actor.Reminder) error {
	a.reminders <- r
	return nil
}

func quiet() actor.Option {
	return actor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newLifecycleRuntime(t *testing.T, proto *lifecycleActor, opts ...actor.Option) *actor.Runtime {
	t.Helper()
	rt := actor.NewRuntime(append([]actor.Option{quiet()}, opts...)...)
	require.NoError(t, rt.Register("life", func(actor.ID) (actor.Actor, error) {
		a := *proto
		return &a, nil
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})
	return rt
}

func newProto() *lifecycleActor {
	return &lifecycleActor{
		activations:   &atomic.Int32{},
		deactivations: &atomic.Int32{},
		live:          &atomic.Int32{},
		maxLive:       &atomic.Int32{},
		reminders:     make(chan actor.Reminder, 8),
	}
}

func TestRuntime_Register(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())

	factory := func(actor.ID) (actor.Actor, error) { return &counter{}, nil }
	require.NoError(t, rt.Register("counter", factory))
	assert.ErrorIs(t, rt.Register("counter", factory), actor.ErrAlreadyRegistered)
	assert.ErrorIs(t, rt.Register("", factory), actor.ErrInvalidID)
	assert.Equal(t, []string{"counter"}, rt.Types())
}

func TestRuntime_InvokeValidation(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())
	noop := func(context.Context, actor.Actor) error { return nil }

	assert.ErrorIs(t, rt.Invoke(context.Background(), actor.ID{Type: "missing", ID: "1"}, noop), actor.ErrUnknownActorType)
	assert.ErrorIs(t, rt.Invoke(context.Background(), actor.ID{Type: "missing"}, noop), actor.ErrInvalidID)
	assert.ErrorIs(t, rt.Invoke(context.Background(), actor.ID{ID: "1"}, noop), actor.ErrInvalidID)
}

func TestRuntime_TurnIsolation(t *testing.T) {
	t.Parallel()

	inTurn, maxInTurn := &atomic.Int32{}, &atomic.Int32{}
	rt := actor.NewRuntime(quiet())
	require.NoError(t, rt.Register("counter", func(actor.ID) (actor.Actor, error) {
		return &counter{inTurn: inTurn, maxInTurn: maxInTurn}, nil
	}))

	id := actor.ID{Type: "counter", ID: "c-1"}
	const calls = 200

	var wg sync.WaitGroup
	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := rt.Invoke(context.Background(), id, func(_ context.Context, a actor.Actor) error {
				c := a.(*counter)
				n := c.inTurn.Add(1)
				if n > c.maxInTurn.Load() {
					c.maxInTurn.Store(n)
				}
				v := c.n
				runtime.Gosched()
				c.n = v + 1
				c.inTurn.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	out, err := rt.Call(context.Background(), id, "get", nil)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(calls), string(out))
	assert.Equal(t, int32(1), maxInTurn.Load())
}

func TestRuntime_DifferentActorsRunConcurrently(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())
	require.NoError(t, rt.Register("counter", func(actor.ID) (actor.Actor, error) { return &counter{}, nil }))

	started := make(chan struct{}, 2)
	release := make(chan struct{})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rt.Invoke(context.Background(), actor.ID{Type: "counter", ID: id}, func(context.Context, actor.Actor) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}

	for range 2 {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("turns of different actors did not overlap")
		}
	}
	close(release)
	wg.Wait()
}

func TestRuntime_Call(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())
	require.NoError(t, rt.Register("counter", func(actor.ID) (actor.Actor, error) { return &counter{}, nil }))
	proto := newProto()
	require.NoError(t, rt.Register("life", func(actor.ID) (actor.Actor, error) {
		a := *proto
		return &a, nil
	}))

	id := actor.ID{Type: "counter", ID: "c-1"}

	out, err := rt.Call(context.Background(), id, "add", []byte("5"))
	require.NoError(t, err)
	assert.Equal(t, "5", string(out))

	_, err = rt.Call(context.Background(), id, "nope", nil)
	assert.ErrorIs(t, err, actor.ErrMethodNotFound)

	_, err = rt.Call(context.Background(), actor.ID{Type: "life", ID: "1"}, "get", nil)
	assert.ErrorIs(t, err, actor.ErrNotDispatcher)
}

func TestRuntime_ActivationFailureRetries(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())

	var attempts atomic.Int32
	require.NoError(t, rt.Register("flaky", func(actor.ID) (actor.Actor, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("state store unavailable")
		}
		return &counter{}, nil
	}))

	id := actor.ID{Type: "flaky", ID: "1"}
	ran := false
	err := rt.Invoke(context.Background(), id, func(context.Context, actor.Actor) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, actor.ErrActivationFailed)
	assert.False(t, ran)

	require.Eventually(t, func() bool { return rt.ActorState(id) == actor.StateInactive }, time.Second, 5*time.Millisecond)

	out, err := rt.Call(context.Background(), id, "add", []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, actor.StateActive, rt.ActorState(id))
}

func TestRuntime_PanicIsRecovered(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())
	require.NoError(t, rt.Register("counter", func(actor.ID) (actor.Actor, error) { return &counter{}, nil }))
	id := actor.ID{Type: "counter", ID: "p"}

	err := rt.Invoke(context.Background(), id, func(context.Context, actor.Actor) error {
		panic("boom")
	})
	assert.ErrorIs(t, err, actor.ErrTurnPanicked)

	out, err := rt.Call(context.Background(), id, "add", []byte("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(out))
}

func TestRuntime_CancelledQueuedTurnIsSkipped(t *testing.T) {
	t.Parallel()
	rt := actor.NewRuntime(quiet())
	require.NoError(t, rt.Register("counter", func(actor.ID) (actor.Actor, error) { return &counter{}, nil }))
	id := actor.ID{Type: "counter", ID: "q"}

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = rt.Invoke(context.Background(), id, func(context.Context, actor.Actor) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.Invoke(ctx, id, func(context.Context, actor.Actor) error {
			ran.Store(true)
			return nil
		})
	}()

	// Give the second call time to be queued behind the first
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)

	// FIFO: once this turn has run the cancelled one was already handled
	require.NoError(t, rt.Invoke(context.Background(), id, func(context.Context, actor.Actor) error { return nil }))
	assert.False(t, ran.Load())
}

func TestRuntime_DeliverReminder(t *testing.T) {
	t.Parallel()
	proto := newProto()
	rt := newLifecycleRuntime(t, proto)

	due := time.Now().Truncate(time.Second)
	err := rt.DeliverReminder(context.Background(), "life", "1", "expiry", []byte("s"), due, time.Minute)
	require.NoError(t, err)

	select {
	case r := <-proto.reminders:
		assert.Equal(t, "expiry", r.Name)
		assert.Equal(t, []byte("s"), r.State)
		assert.True(t, due.Equal(r.DueTime))
		assert.Equal(t, time.Minute, r.Period)
	default:
		t.Fatal("reminder was not received")
	}

	rt2 := actor.NewRuntime(quiet())
	require.NoError(t, rt2.Register("counter", func(actor.ID) (actor.Actor, error) { return &counter{}, nil }))
	err = rt2.DeliverReminder(context.Background(), "counter", "1", "x", nil, due, 0)
	assert.ErrorIs(t, err, actor.ErrNotReminderReceiver)
}

func TestRuntime_Deactivate(t *testing.T) {
	t.Parallel()
	proto := newProto()
	rt := newLifecycleRuntime(t, proto)
	id := actor.ID{Type: "life", ID: "1"}
	noop := func(context.Context, actor.Actor) error { return nil }

	require.NoError(t, rt.Invoke(context.Background(), id, noop))
	assert.Equal(t, actor.StateActive, rt.ActorState(id))

	require.NoError(t, rt.Deactivate(context.Background(), id))
	assert.Equal(t, actor.StateInactive, rt.ActorState(id))
	assert.Equal(t, int32(1), proto.deactivations.Load())

	require.NoError(t, rt.Invoke(context.Background(), id, noop))
	assert.Equal(t, int32(2), proto.activations.Load())

	// Unknown instance is a no-op
	require.NoError(t, rt.Deactivate(context.Background(), actor.ID{Type: "life", ID: "other"}))
}

func TestRuntime_DeactivationNeverOverlapsActivation(t *testing.T) {
	t.Parallel()
	proto := newProto()
	proto.deactivateFor = 50 * time.Millisecond
	rt := newLifecycleRuntime(t, proto)
	id := actor.ID{Type: "life", ID: "1"}
	noop := func(context.Context, actor.Actor) error { return nil }

	for range 5 {
		require.NoError(t, rt.Invoke(context.Background(), id, noop))

		deactivated := make(chan error, 1)
		go func() { deactivated <- rt.Deactivate(context.Background(), id) }()

		require.Eventually(t, func() bool { return rt.ActorState(id) != actor.StateActive }, time.Second, time.Millisecond)
		require.NoError(t, rt.Invoke(context.Background(), id, noop))
		require.NoError(t, <-deactivated)
	}

	assert.Equal(t, int32(1), proto.maxLive.Load())
	assert.Equal(t, int32(6), proto.activations.Load())
}

func TestRuntime_IdleReaping(t *testing.T) {
	t.Parallel()
	proto := newProto()
	rt := newLifecycleRuntime(t, proto,
		actor.WithIdleTimeout(20*time.Millisecond),
		actor.WithReapInterval(5*time.Millisecond),
	)
	require.NoError(t, rt.Start(context.Background()))
	assert.ErrorIs(t, rt.Start(context.Background()), actor.ErrRuntimeStarted)

	id := actor.ID{Type: "life", ID: "idle"}
	require.NoError(t, rt.Invoke(context.Background(), id, func(context.Context, actor.Actor) error { return nil }))
	assert.Equal(t, 1, rt.Stats().Actors)

	require.Eventually(t, func() bool {
		return rt.ActorState(id) == actor.StateInactive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), proto.deactivations.Load())
	assert.Equal(t, 0, rt.Stats().Actors)
}

func TestRuntime_Stop(t *testing.T) {
	t.Parallel()
	proto := newProto()
	rt := newLifecycleRuntime(t, proto)
	noop := func(context.Context, actor.Actor) error { return nil }

	for i := range 3 {
		require.NoError(t, rt.Invoke(context.Background(), actor.ID{Type: "life", ID: strconv.Itoa(i)}, noop))
	}
	stats := rt.Stats()
	assert.Equal(t, 3, stats.Actors)
	assert.Equal(t, 3, stats.ByType["life"])
	assert.Equal(t, 3, stats.ByState[actor.StateActive])

	require.NoError(t, rt.Stop(context.Background()))
	assert.Equal(t, int32(3), proto.deactivations.Load())
	assert.Equal(t, 0, rt.Stats().Actors)

	err := rt.Invoke(context.Background(), actor.ID{Type: "life", ID: "0"}, noop)
	assert.ErrorIs(t, err, actor.ErrRuntimeStopped)
}
