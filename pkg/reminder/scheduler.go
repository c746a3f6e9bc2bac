package reminder

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/actorkit/pkg/collection"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// Scheduler persists reminders and delivers them when due.
type Scheduler struct {
	reminders *collection.Collection[Reminder]
	deliverer Deliverer

	// opMu serializes store writes with the generation checks made after a delivery.
	opMu sync.Mutex

	mu       sync.Mutex
	armed    map[string]Reminder
	queued   map[string]*entry
	inflight map[string]bool
	queue    entryQueue
	cancel   context.CancelFunc

	wake chan struct{}
	sem  chan struct{}
	wg   sync.WaitGroup

	indexKey        string
	retryDelay      time.Duration
	maxRetryDelay   time.Duration
	maxAttempts     int
	deliveryTimeout time.Duration
	idleWait        time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

// NewScheduler creates a scheduler that keeps its reminders in store.
func NewScheduler(store kvstore.Store, deliverer Deliverer, opts ...SchedulerOption) (*Scheduler, error) {
	if deliverer == nil {
		return nil, ErrDelivererNil
	}

	o := defaultSchedulerOptions()
	for _, opt := range opts {
		opt(o)
	}

	reminders, err := collection.New[Reminder](store,
		collection.WithLogger(o.logger),
		collection.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		reminders:       reminders,
		deliverer:       deliverer,
		armed:           make(map[string]Reminder),
		queued:          make(map[string]*entry),
		inflight:        make(map[string]bool),
		wake:            make(chan struct{}, 1),
		sem:             make(chan struct{}, o.maxDeliveries),
		indexKey:        o.indexKey,
		retryDelay:      o.retryDelay,
		maxRetryDelay:   o.maxRetryDelay,
		maxAttempts:     o.maxAttempts,
		deliveryTimeout: o.deliveryTimeout,
		idleWait:        o.idleWait,
		logger:          o.logger.With(logger.Component("reminder-scheduler")),
		metrics:         o.metrics,
	}, nil
}

// Register persists r and arms it, replacing any reminder with the same identity.
// A zero DueTime means now.
func (s *Scheduler) Register(ctx context.Context, r Reminder) error {
	if err := r.validate(); err != nil {
		return err
	}

	now := time.Now()
	if r.DueTime.IsZero() {
		r.DueTime = now
	}
	r.Generation = uuid.NewString()
	r.Attempts = 0
	r.CreatedAt = now

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.reminders.Upsert(ctx, s.indexKey, r.Key(), r); err != nil {
		return fmt.Errorf("reminder: register %s: %w", r.Key(), err)
	}

	s.mu.Lock()
	s.armLocked(r)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "reminder registered",
		logger.ActorType(r.ActorType),
		logger.ActorID(r.ActorID),
		logger.Reminder(r.Name),
		logger.DueTime(r.DueTime),
	)
	return nil
}

// Unregister disarms and deletes a reminder. Unknown reminders are ignored.
// A delivery already running is not interrupted.
func (s *Scheduler) Unregister(ctx context.Context, actorType, actorID, name string) error {
	key := Key(actorType, actorID, name)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.unregisterLocked(ctx, key)
}

// UnregisterAll removes every reminder owned by the actor.
func (s *Scheduler) UnregisterAll(ctx context.Context, actorType, actorID string) error {
	if actorType == "" || actorID == "" {
		return ErrInvalidReminder
	}
	prefix := ownerPrefix(actorType, actorID)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	keys, err := s.reminders.Keys(ctx, s.indexKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for key := range s.armed {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] || !strings.HasPrefix(key, prefix) {
			continue
		}
		seen[key] = true
		if err := s.unregisterLocked(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) unregisterLocked(ctx context.Context, key string) error {
	s.mu.Lock()
	s.disarmLocked(key)
	s.mu.Unlock()

	if err := s.reminders.Delete(ctx, s.indexKey, key); err != nil {
		return fmt.Errorf("reminder: unregister %s: %w", key, err)
	}
	return nil
}

// Get returns the persisted reminder.
func (s *Scheduler) Get(ctx context.Context, actorType, actorID, name string) (Reminder, error) {
	r, err := s.reminders.Get(ctx, Key(actorType, actorID, name))
	if errors.Is(err, collection.ErrNotFound) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

// List returns every persisted reminder.
func (s *Scheduler) List(ctx context.Context) ([]Reminder, error) {
	return s.reminders.GetAll(ctx, s.indexKey)
}

// Armed returns how many reminders are waiting for their due time or being delivered.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// Start re-arms every persisted reminder and starts the delivery loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	recovered, err := s.rearm(ctx)
	if err != nil {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		return err
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("reminder scheduler started", slog.Int("recovered", recovered))
	return nil
}

// Stop halts the delivery loop and waits for running deliveries or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the scheduler and returns a function suitable for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), s.deliveryTimeout)
		defer cancel()
		return s.Stop(stopCtx)
	}
}

func (s *Scheduler) rearm(ctx context.Context) (int, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	stored, err := s.reminders.GetAll(ctx, s.indexKey)
	if err != nil {
		return 0, fmt.Errorf("reminder: recover: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range stored {
		if cur, ok := s.armed[r.Key()]; ok && cur.Generation == r.Generation {
			continue
		}
		s.armLocked(r)
	}
	return len(stored), nil
}

func (s *Scheduler) armLocked(r Reminder) {
	key := r.Key()
	s.armed[key] = r
	defer s.metrics.SetArmedReminders(len(s.armed))

	// The delivery completion picks up the new generation.
	if s.inflight[key] {
		return
	}

	if e, ok := s.queued[key]; ok {
		e.reminder = r
		heap.Fix(&s.queue, e.index)
	} else {
		e := &entry{reminder: r}
		heap.Push(&s.queue, e)
		s.queued[key] = e
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) disarmLocked(key string) {
	delete(s.armed, key)
	if e, ok := s.queued[key]; ok {
		heap.Remove(&s.queue, e.index)
		delete(s.queued, key)
	}
	s.metrics.SetArmedReminders(len(s.armed))
}

// popDueLocked takes every reminder due at now off the queue and marks it in flight.
// It also returns how long to wait for the next one.
func (s *Scheduler) popDueLocked(now time.Time) ([]Reminder, time.Duration) {
	var due []Reminder
	for s.queue.Len() > 0 && !s.queue[0].reminder.DueTime.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		key := e.reminder.Key()
		delete(s.queued, key)
		s.inflight[key] = true
		due = append(due, e.reminder)
	}

	if s.queue.Len() == 0 {
		return due, s.idleWait
	}
	return due, s.queue[0].reminder.DueTime.Sub(now)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.idleWait)
	defer timer.Stop()

	for {
		s.mu.Lock()
		due, wait := s.popDueLocked(time.Now())
		s.mu.Unlock()

		for i, r := range due {
			select {
			case s.sem <- struct{}{}:
			case <-ctx.Done():
				s.requeue(due[i:])
				return
			}
			s.wg.Add(1)
			go s.deliver(r)
		}
		if len(due) > 0 {
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) requeue(reminders []Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reminders {
		key := r.Key()
		delete(s.inflight, key)
		if cur, ok := s.armed[key]; ok {
			s.armLocked(cur)
		}
	}
}

func (s *Scheduler) deliver(r Reminder) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), s.deliveryTimeout)
	defer cancel()
	ctx = logger.WithActor(ctx, r.ActorType, r.ActorID)

	start := time.Now()
	err := s.call(ctx, r)
	lag := start.Sub(r.DueTime)

	if err != nil {
		s.logger.ErrorContext(ctx, "reminder delivery failed",
			logger.Reminder(r.Name),
			logger.DueTime(r.DueTime),
			logger.Attempt(r.Attempts+1),
			logger.Error(err),
		)
	} else {
		s.logger.DebugContext(ctx, "reminder delivered",
			logger.Reminder(r.Name),
			logger.Duration(time.Since(start)),
		)
	}

	result := s.complete(ctx, r, err)
	s.metrics.ObserveReminder(r.ActorType, result, lag)
}

func (s *Scheduler) call(ctx context.Context, r Reminder) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrDeliveryPanicked, p)
		}
	}()
	return s.deliverer.DeliverReminder(ctx, r.ActorType, r.ActorID, r.Name, r.State, r.DueTime, r.Period)
}

// complete arms the next firing of a delivered reminder, or removes it.
// The outcome is decided against the generation that was delivered so a
// reminder re-registered or removed in the meantime is left alone.
func (s *Scheduler) complete(ctx context.Context, delivered Reminder, deliveryErr error) string {
	key := delivered.Key()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	delete(s.inflight, key)
	cur, ok := s.armed[key]
	if !ok {
		s.mu.Unlock()
		return outcome(deliveryErr)
	}
	if cur.Generation != delivered.Generation {
		s.armLocked(cur)
		s.mu.Unlock()
		return outcome(deliveryErr)
	}

	now := time.Now()
	next := delivered
	result := outcome(deliveryErr)
	remove := false

	switch {
	case delivered.Periodic():
		var missed int
		next.DueTime, missed = nextDue(delivered.DueTime, delivered.Period, now)
		next.Attempts = 0
		if missed > 0 {
			s.logger.WarnContext(ctx, "coalesced missed reminder periods",
				logger.Reminder(delivered.Name),
				slog.Int("missed", missed),
			)
		}
	case deliveryErr == nil:
		remove = true
	default:
		next.Attempts++
		if s.drop(deliveryErr, next.Attempts) {
			remove = true
			result = metrics.OutcomeDropped
			s.logger.ErrorContext(ctx, "dropping undeliverable reminder",
				logger.Reminder(delivered.Name),
				logger.Attempt(next.Attempts),
				logger.Error(deliveryErr),
			)
		} else {
			next.DueTime = now.Add(backoff(s.retryDelay, s.maxRetryDelay, next.Attempts))
			result = metrics.OutcomeRetry
		}
	}

	if remove {
		s.disarmLocked(key)
	} else {
		s.armLocked(next)
	}
	s.mu.Unlock()

	// The delivery context may have expired.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deliveryTimeout)
	defer cancel()

	var err error
	if remove {
		err = s.reminders.Delete(storeCtx, s.indexKey, key)
	} else {
		err = s.reminders.Upsert(storeCtx, s.indexKey, key, next)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist reminder outcome",
			logger.Reminder(delivered.Name),
			logger.Error(err),
		)
	}
	return result
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeSuccess
}
