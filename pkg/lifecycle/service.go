package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/collection"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
	"github.com/dmitrymomot/actorkit/pkg/statemachine"
)

// Service manages the entities of one kind. Writes run as turns of the entity
// actor; list queries read the collection directly and filter on read.
type Service[P any] struct {
	policy    Policy[P]
	host      Host
	entities  *collection.Collection[Entity[P]]
	reminders Reminders
	machine   *statemachine.Machine

	now      func() time.Time
	notifier Notifier
	history  int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService creates the service and registers the entity actor type on host.
func NewService[P any](policy Policy[P], host Host, store kvstore.Store, reminders Reminders, opts ...Option) (*Service[P], error) {
	if host == nil || store == nil || reminders == nil {
		return nil, fmt.Errorf("%w: host, store and reminders are required", ErrInvalidPolicy)
	}
	policy, err := policy.withDefaults()
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger.With(logger.Component("lifecycle"), logger.Kind(policy.Kind))

	collOpts := []collection.Option{
		collection.WithLogger(o.logger),
		collection.WithMetrics(o.metrics),
	}
	if o.parallelism > 0 {
		collOpts = append(collOpts, collection.WithParallelism(o.parallelism))
	}
	entities, err := collection.New[Entity[P]](store, collOpts...)
	if err != nil {
		return nil, err
	}

	s := &Service[P]{
		policy:    policy,
		host:      host,
		entities:  entities,
		reminders: reminders,
		machine:   newMachine[P](),
		now:       o.now,
		notifier:  o.notifier,
		history:   o.historyLimit,
		logger:    log,
		metrics:   o.metrics,
	}

	if err := host.Register(policy.Kind, s.newActor); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service[P]) newActor(id actor.ID) (actor.Actor, error) {
	return &EntityActor[P]{
		id:        id.ID,
		policy:    s.policy,
		machine:   s.machine,
		entities:  s.entities,
		reminders: s.reminders,
		notifier:  s.notifier,
		now:       s.now,
		history:   s.history,
		logger:    s.logger,
		metrics:   s.metrics,
	}, nil
}

// Kind returns the entity kind served.
func (s *Service[P]) Kind() string {
	return s.policy.Kind
}

// Policy returns the policy with defaults applied.
func (s *Service[P]) Policy() Policy[P] {
	return s.policy
}

// Collection returns the entity collection.
func (s *Service[P]) Collection() *collection.Collection[Entity[P]] {
	return s.entities
}

func (s *Service[P]) invoke(ctx context.Context, id string, fn func(context.Context, *EntityActor[P]) error) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrValidation)
	}
	return s.host.Invoke(ctx, actor.ID{Type: s.policy.Kind, ID: id}, func(ctx context.Context, a actor.Actor) error {
		ea, ok := a.(*EntityActor[P])
		if !ok {
			return fmt.Errorf("lifecycle: unexpected actor %T for kind %s", a, s.policy.Kind)
		}
		return fn(ctx, ea)
	})
}

func (s *Service[P]) call(ctx context.Context, id string, fn func(context.Context, *EntityActor[P]) (Entity[P], error)) (Entity[P], error) {
	var out Entity[P]
	err := s.invoke(ctx, id, func(ctx context.Context, a *EntityActor[P]) error {
		e, err := fn(ctx, a)
		out = e
		return err
	})
	if err != nil {
		return Entity[P]{}, err
	}
	return out, nil
}

// Create stores a new Pending entity. An empty ID is generated.
func (s *Service[P]) Create(ctx context.Context, e Entity[P]) (Entity[P], error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return s.call(ctx, e.ID, func(ctx context.Context, a *EntityActor[P]) (Entity[P], error) {
		return a.Create(ctx, e)
	})
}

// SetData creates or updates an entity.
func (s *Service[P]) SetData(ctx context.Context, e Entity[P]) (Entity[P], error) {
	return s.call(ctx, e.ID, func(ctx context.Context, a *EntityActor[P]) (Entity[P], error) {
		return a.SetData(ctx, e)
	})
}

// Get returns the entity through its actor.
func (s *Service[P]) Get(ctx context.Context, id string) (Entity[P], error) {
	return s.call(ctx, id, func(ctx context.Context, a *EntityActor[P]) (Entity[P], error) {
		return a.GetData(ctx)
	})
}

// Apply fires event on the entity.
func (s *Service[P]) Apply(ctx context.Context, id string, event Event) (Entity[P], error) {
	return s.call(ctx, id, func(ctx context.Context, a *EntityActor[P]) (Entity[P], error) {
		return a.Apply(ctx, event)
	})
}

// Activate starts the entity, or schedules its start when StartDate is in the future.
func (s *Service[P]) Activate(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventActivate)
}

// Cancel cancels the entity and drops its reminders.
func (s *Service[P]) Cancel(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventCancel)
}

// Suspend puts the entity on hold.
func (s *Service[P]) Suspend(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventSuspend)
}

// Resume reactivates an entity on hold.
func (s *Service[P]) Resume(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventResume)
}

// SoftDelete marks the entity deleted and keeps the record.
func (s *Service[P]) SoftDelete(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventDelete)
}

// Renew extends the end date of an active entity by the policy duration.
func (s *Service[P]) Renew(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventRenew)
}

// Fail marks a pending entity whose activation cannot succeed.
func (s *Service[P]) Fail(ctx context.Context, id string) (Entity[P], error) {
	return s.Apply(ctx, id, EventFail)
}

// HandleExpiry runs the expiry check the expiry reminder runs.
func (s *Service[P]) HandleExpiry(ctx context.Context, id string) (Entity[P], error) {
	return s.call(ctx, id, func(ctx context.Context, a *EntityActor[P]) (Entity[P], error) {
		return a.HandleExpiry(ctx)
	})
}

// HardDelete removes the entity, its index entry and its reminders, then
// deactivates its actor.
func (s *Service[P]) HardDelete(ctx context.Context, id string) error {
	err := s.invoke(ctx, id, func(ctx context.Context, a *EntityActor[P]) error {
		return a.HardDelete(ctx)
	})
	if err != nil {
		return err
	}
	return s.host.Deactivate(ctx, actor.ID{Type: s.policy.Kind, ID: id})
}

// List returns every entity of the kind, soft deleted ones included.
func (s *Service[P]) List(ctx context.Context) ([]Entity[P], error) {
	return s.entities.GetAll(ctx, s.policy.CollectionKey)
}

// ListByUser returns the entities owned by userID.
func (s *Service[P]) ListByUser(ctx context.Context, userID string) ([]Entity[P], error) {
	return s.filter(ctx, userID, func(Entity[P]) bool { return true })
}

// ActiveForUser returns the active entities of userID whose end date has not passed.
func (s *Service[P]) ActiveForUser(ctx context.Context, userID string) ([]Entity[P], error) {
	now := s.now()
	return s.filter(ctx, userID, func(e Entity[P]) bool { return e.IsActiveAt(now) })
}

// ExpiredForUser returns the expired entities of userID, including active ones
// past their end date whose expiry has not been processed yet.
func (s *Service[P]) ExpiredForUser(ctx context.Context, userID string) ([]Entity[P], error) {
	now := s.now()
	return s.filter(ctx, userID, func(e Entity[P]) bool { return e.IsExpiredAt(now) })
}

func (s *Service[P]) filter(ctx context.Context, userID string, keep func(Entity[P]) bool) ([]Entity[P], error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrValidation)
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(e Entity[P]) bool {
		return e.UserID != userID || !keep(e)
	}), nil
}
