package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// Runtime hosts actors and serializes the calls made to each of them.
type Runtime struct {
	mu        sync.Mutex
	factories map[string]Factory
	actors    map[ID]*instance
	stopped   bool

	cancel     context.CancelFunc
	reaperDone chan struct{}

	idleTimeout       time.Duration
	reapInterval      time.Duration
	mailboxSize       int
	deactivateTimeout time.Duration
	logger            *slog.Logger
	metrics           *metrics.Metrics
}

type turn struct {
	ctx    context.Context
	fn     TurnFunc
	result chan error
}

type instance struct {
	id      ID
	factory Factory
	mailbox chan *turn
	quit    chan struct{}
	done    chan struct{}

	// Guarded by Runtime.mu.
	state     State
	pending   int
	activated bool
	retire    bool
	lastUsed  time.Time

	// Owned by the instance goroutine.
	actor Actor
}

// NewRuntime creates a runtime. Calls are served right away; Start only adds idle reaping.
func NewRuntime(opts ...Option) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Runtime{
		factories:         make(map[string]Factory),
		actors:            make(map[ID]*instance),
		idleTimeout:       o.idleTimeout,
		reapInterval:      o.reapInterval,
		mailboxSize:       o.mailboxSize,
		deactivateTimeout: o.deactivateTimeout,
		logger:            o.logger.With(logger.Component("actor-runtime")),
		metrics:           o.metrics,
	}
}

// Register binds a factory to an actor type.
func (r *Runtime) Register(actorType string, factory Factory) error {
	if actorType == "" || factory == nil {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[actorType]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, actorType)
	}
	r.factories[actorType] = factory
	return nil
}

// Types returns the registered actor types.
func (r *Runtime) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// Invoke runs fn as one turn of the actor addressed by id, activating it if needed.
// It returns fn's error, ErrActivationFailed, or the context error if ctx ends first.
// A turn still queued when ctx ends is skipped.
func (r *Runtime) Invoke(ctx context.Context, id ID, fn TurnFunc) error {
	if err := id.validate(); err != nil {
		return err
	}

	inst, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}

	t := &turn{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case inst.mailbox <- t:
	case <-ctx.Done():
		r.mu.Lock()
		r.releaseLocked(inst)
		r.mu.Unlock()
		return ctx.Err()
	}

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call invokes method on a Dispatcher actor with a serialized argument.
func (r *Runtime) Call(ctx context.Context, id ID, method string, arg []byte) ([]byte, error) {
	var out []byte
	err := r.Invoke(ctx, id, func(ctx context.Context, a Actor) error {
		d, ok := a.(Dispatcher)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotDispatcher, id.Type)
		}
		res, err := d.Dispatch(ctx, method, arg)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeliverReminder delivers a reminder firing as a turn of the owning actor.
func (r *Runtime) DeliverReminder(ctx context.Context, actorType, actorID, name string, state []byte, dueTime time.Time, period time.Duration) error {
	id := ID{Type: actorType, ID: actorID}
	return r.Invoke(ctx, id, func(ctx context.Context, a Actor) error {
		rr, ok := a.(ReminderReceiver)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotReminderReceiver, actorType)
		}
		return rr.ReceiveReminder(ctx, Reminder{
			Name:    name,
			State:   state,
			DueTime: dueTime,
			Period:  period,
		})
	})
}

// Deactivate deactivates the actor once it has no queued or running calls and
// waits for OnDeactivate to finish. Must not be called from a turn of the same actor.
func (r *Runtime) Deactivate(ctx context.Context, id ID) error {
	if err := id.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	inst, ok := r.actors[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	inst.retire = true
	if inst.pending == 0 {
		r.beginDeactivateLocked(inst)
	}
	done := inst.done
	r.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActorState reports the activation state of id.
func (r *Runtime) ActorState(id ID) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.actors[id]; ok {
		return inst.state
	}
	return StateInactive
}

// Stats returns a snapshot of hosted actors.
func (r *Runtime) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Actors:  len(r.actors),
		ByType:  make(map[string]int),
		ByState: make(map[State]int),
	}
	for id, inst := range r.actors {
		s.ByType[id.Type]++
		s.ByState[inst.state]++
	}
	return s
}

// Start launches the idle reaper.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRuntimeStopped
	}
	if r.cancel != nil {
		return ErrRuntimeStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.reaperDone = make(chan struct{})
	go r.reaper(ctx, r.reaperDone)

	r.logger.Info("actor runtime started",
		slog.Duration("idle_timeout", r.idleTimeout),
		slog.Duration("reap_interval", r.reapInterval),
	)
	return nil
}

// Stop rejects new calls, lets queued calls finish, deactivates every actor and
// waits for them or for ctx.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	cancel, reaperDone := r.cancel, r.reaperDone
	r.cancel = nil

	dones := make([]chan struct{}, 0, len(r.actors))
	for _, inst := range r.actors {
		inst.retire = true
		if inst.pending == 0 {
			r.beginDeactivateLocked(inst)
		}
		dones = append(dones, inst.done)
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-reaperDone
	}

	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.logger.Info("actor runtime stopped", slog.Int("deactivated", len(dones)))
	return nil
}

// Run starts the runtime and returns a function suitable for errgroup.
func (r *Runtime) Run(ctx context.Context) func() error {
	return func() error {
		if err := r.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), r.deactivateTimeout)
		defer cancel()
		return r.Stop(stopCtx)
	}
}

func (r *Runtime) reaper(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.reapIdle(now); n > 0 {
				r.logger.Debug("deactivating idle actors", slog.Int("count", n))
			}
		}
	}
}

func (r *Runtime) reapIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, inst := range r.actors {
		if inst.state == StateActive && inst.pending == 0 && now.Sub(inst.lastUsed) >= r.idleTimeout {
			r.beginDeactivateLocked(inst)
			n++
		}
	}
	return n
}

// acquire returns the live instance for id with a call reserved on it.
// A deactivating instance is waited out first.
func (r *Runtime) acquire(ctx context.Context, id ID) (*instance, error) {
	for {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return nil, ErrRuntimeStopped
		}

		factory, ok := r.factories[id.Type]
		if !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownActorType, id.Type)
		}

		inst, ok := r.actors[id]
		if ok && inst.state == StateDeactivating {
			done := inst.done
			r.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if !ok {
			inst = &instance{
				id:       id,
				factory:  factory,
				mailbox:  make(chan *turn, r.mailboxSize),
				quit:     make(chan struct{}),
				done:     make(chan struct{}),
				state:    StateActivating,
				lastUsed: time.Now(),
			}
			r.actors[id] = inst
			go r.serve(inst)
		}

		inst.pending++
		r.mu.Unlock()
		return inst, nil
	}
}

// releaseLocked gives back a reserved call. The caller holds r.mu.
func (r *Runtime) releaseLocked(inst *instance) {
	inst.pending--
	inst.lastUsed = time.Now()
	if inst.pending == 0 && (inst.retire || !inst.activated) {
		r.beginDeactivateLocked(inst)
	}
}

// beginDeactivateLocked stops the instance goroutine. The caller holds r.mu and
// guarantees no calls are reserved, so the mailbox is empty.
func (r *Runtime) beginDeactivateLocked(inst *instance) {
	if inst.state == StateDeactivating || inst.state == StateInactive {
		return
	}
	inst.state = StateDeactivating
	close(inst.quit)
}

// serve is the instance goroutine: it executes turns one by one until quit.
func (r *Runtime) serve(inst *instance) {
	defer r.finish(inst)

	for {
		select {
		case t := <-inst.mailbox:
			r.execute(inst, t)
		case <-inst.quit:
			return
		}
	}
}

func (r *Runtime) execute(inst *instance, t *turn) {
	err := t.ctx.Err()
	if err == nil {
		ctx := logger.WithActor(t.ctx, inst.id.Type, inst.id.ID)
		if inst.actor == nil {
			err = r.activate(ctx, inst)
		}
		if err == nil {
			err = r.runTurn(ctx, inst, t.fn)
		}
	}

	r.mu.Lock()
	r.releaseLocked(inst)
	r.mu.Unlock()

	t.result <- err
}

func (r *Runtime) activate(ctx context.Context, inst *instance) error {
	var a Actor
	err := protect(func() error {
		var err error
		if a, err = inst.factory(inst.id); err != nil {
			return err
		}
		if act, ok := a.(Activator); ok {
			return act.OnActivate(ctx)
		}
		return nil
	})
	r.metrics.ObserveActivation(inst.id.Type, err)
	if err != nil {
		r.logger.WarnContext(ctx, "actor activation failed", logger.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, inst.id, err)
	}

	inst.actor = a

	r.mu.Lock()
	inst.activated = true
	inst.state = StateActive
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "actor activated")
	return nil
}

func (r *Runtime) runTurn(ctx context.Context, inst *instance, fn TurnFunc) error {
	start := time.Now()
	err := protect(func() error { return fn(ctx, inst.actor) })
	r.metrics.ObserveTurn(inst.id.Type, time.Since(start), err)

	if errors.Is(err, ErrTurnPanicked) {
		r.logger.ErrorContext(ctx, "actor turn panicked", logger.Error(err))
	}
	return err
}

// finish runs OnDeactivate and removes the instance.
func (r *Runtime) finish(inst *instance) {
	if inst.actor != nil {
		if d, ok := inst.actor.(Deactivator); ok {
			ctx, cancel := context.WithTimeout(
				logger.WithActor(context.Background(), inst.id.Type, inst.id.ID),
				r.deactivateTimeout,
			)
			if err := protect(func() error { return d.OnDeactivate(ctx) }); err != nil {
				r.logger.WarnContext(ctx, "actor deactivation hook failed", logger.Error(err))
			}
			cancel()
		}
		r.metrics.ObserveDeactivation(inst.id.Type)
		r.logger.Debug("actor deactivated", logger.ActorType(inst.id.Type), logger.ActorID(inst.id.ID))
	}

	r.mu.Lock()
	inst.state = StateInactive
	if r.actors[inst.id] == inst {
		delete(r.actors, inst.id)
	}
	r.mu.Unlock()

	close(inst.done)
}

func protect(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrTurnPanicked, p)
		}
	}()
	return fn()
}
