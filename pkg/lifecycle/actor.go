package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/collection"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
	"github.com/dmitrymomot/actorkit/pkg/reminder"
	"github.com/dmitrymomot/actorkit/pkg/statemachine"
)

// Methods reachable through actor.Runtime.Call. Arguments and results are JSON.
const (
	MethodCreate       = "Create"
	MethodSetData      = "SetData"
	MethodGetData      = "GetData"
	MethodActivate     = "Activate"
	MethodCancel       = "Cancel"
	MethodSuspend      = "Suspend"
	MethodResume       = "Resume"
	MethodSoftDelete   = "SoftDelete"
	MethodRenew        = "Renew"
	MethodFail         = "Fail"
	MethodHandleExpiry = "HandleExpiry"
	MethodHardDelete   = "HardDelete"
)

var methodEvents = map[string]Event{
	MethodActivate:   EventActivate,
	MethodCancel:     EventCancel,
	MethodSuspend:    EventSuspend,
	MethodResume:     EventResume,
	MethodSoftDelete: EventDelete,
	MethodRenew:      EventRenew,
	MethodFail:       EventFail,
}

// EntityKey is the store key of an entity record.
func EntityKey(kind, id string) string {
	return kind + "||" + id
}

// EntityActor owns one entity. Its methods must run inside a turn of the actor.
type EntityActor[P any] struct {
	id        string
	policy    Policy[P]
	machine   *statemachine.Machine
	entities  *collection.Collection[Entity[P]]
	reminders Reminders
	notifier  Notifier
	now       func() time.Time
	history   int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// Loaded on activation, nil when no record exists.
	entity *Entity[P]
}

var (
	_ actor.Activator        = (*EntityActor[struct{}])(nil)
	_ actor.Dispatcher       = (*EntityActor[struct{}])(nil)
	_ actor.ReminderReceiver = (*EntityActor[struct{}])(nil)
)

func (a *EntityActor[P]) key() string {
	return EntityKey(a.policy.Kind, a.id)
}

// OnActivate loads the entity record and re-registers any reminder its status
// needs that went missing, so an actor heals after an interrupted turn.
func (a *EntityActor[P]) OnActivate(ctx context.Context) error {
	e, err := a.entities.Get(ctx, a.key())
	if errors.Is(err, collection.ErrNotFound) {
		a.entity = nil
		return nil
	}
	if err != nil {
		return err
	}
	a.entity = &e
	return a.heal(ctx)
}

func (a *EntityActor[P]) heal(ctx context.Context) error {
	for name, due := range a.wanted(a.entity) {
		r, err := a.reminders.Get(ctx, a.policy.Kind, a.id, name)
		switch {
		case errors.Is(err, reminder.ErrNotFound):
		case err != nil:
			return err
		case !r.DueTime.After(due):
			continue
		}
		if err := a.registerReminder(ctx, name, due); err != nil {
			return err
		}
		a.logger.WarnContext(ctx, "re-registered missing reminder",
			logger.Kind(a.policy.Kind),
			logger.Reminder(name),
			logger.DueTime(due),
		)
	}
	return nil
}

// Create stores a new Pending entity.
func (a *EntityActor[P]) Create(ctx context.Context, in Entity[P]) (Entity[P], error) {
	if a.entity != nil {
		return Entity[P]{}, fmt.Errorf("%w: %s", ErrAlreadyExists, a.key())
	}
	return a.SetData(ctx, in)
}

// SetData validates in and stores it. A new entity starts as Pending. For an
// existing entity the user, payload and any given dates are replaced while the
// status and history are kept.
func (a *EntityActor[P]) SetData(ctx context.Context, in Entity[P]) (Entity[P], error) {
	if err := a.validate(in); err != nil {
		return Entity[P]{}, err
	}

	now := a.now()
	var e Entity[P]
	if a.entity == nil {
		e = Entity[P]{
			ID:        a.id,
			Kind:      a.policy.Kind,
			Status:    StatusPending,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			CreatedAt: now,
		}
	} else {
		e = a.clone()
		if in.StartDate != nil {
			e.StartDate = in.StartDate
		}
		if in.EndDate != nil {
			e.EndDate = in.EndDate
		}
	}
	e.UserID = in.UserID
	e.Payload = in.Payload
	e.UpdatedAt = now

	if e.StartDate != nil && e.EndDate != nil && e.EndDate.Before(*e.StartDate) {
		return Entity[P]{}, fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	if err := a.commit(ctx, e); err != nil {
		return Entity[P]{}, err
	}
	return e, nil
}

func (a *EntityActor[P]) validate(in Entity[P]) error {
	switch {
	case in.ID == "":
		return fmt.Errorf("%w: empty id", ErrValidation)
	case in.ID != a.id:
		return fmt.Errorf("%w: id %q does not match actor %q", ErrValidation, in.ID, a.id)
	case in.UserID == "":
		return fmt.Errorf("%w: empty user id", ErrValidation)
	case in.Kind != "" && in.Kind != a.policy.Kind:
		return fmt.Errorf("%w: kind %q does not match %q", ErrValidation, in.Kind, a.policy.Kind)
	case in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate):
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	if err := a.policy.validate(in.Payload); err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}

// GetData returns the entity.
func (a *EntityActor[P]) GetData(context.Context) (Entity[P], error) {
	if a.entity == nil {
		return Entity[P]{}, fmt.Errorf("%w: %s", ErrNotFound, a.key())
	}
	return a.clone(), nil
}

// Apply fires event against the current status. An event whose targets include
// the current status is a successful no-op.
func (a *EntityActor[P]) Apply(ctx context.Context, event Event) (Entity[P], error) {
	if a.entity == nil {
		return Entity[P]{}, fmt.Errorf("%w: %s", ErrNotFound, a.key())
	}

	if event == EventActivate && a.entity.Status == StatusPending {
		if err := a.policy.checkActivation(*a.entity); err != nil {
			if _, ferr := a.Apply(ctx, EventFail); ferr != nil {
				return a.clone(), ferr
			}
			return a.clone(), fmt.Errorf("%w: %w", ErrActivationFailed, err)
		}
	}

	from := a.entity.Status
	next := a.clone()
	s := &step[P]{entity: &next, now: a.now(), policy: a.policy}

	to, err := a.machine.Fire(ctx, from, event, s)
	if err != nil {
		if errors.Is(err, statemachine.ErrNoTransition) && a.machine.IsTarget(event, from) {
			return a.clone(), nil
		}
		return a.clone(), fmt.Errorf("%w: %s on %s: %w", ErrInvalidTransition, event, from, err)
	}

	change := Change{
		EntityID: a.id,
		Kind:     a.policy.Kind,
		UserID:   next.UserID,
		From:     from,
		To:       to.(Status),
		Event:    event,
		At:       s.now,
	}
	next.Status = change.To
	next.UpdatedAt = s.now
	next.History = appendHistory(next.History, change, a.history)

	if err := a.commit(ctx, next); err != nil {
		return a.clone(), err
	}

	a.metrics.IncTransition(a.policy.Kind, string(change.From), string(change.To))
	a.logger.InfoContext(ctx, "entity transitioned",
		logger.Kind(a.policy.Kind),
		logger.UserID(next.UserID),
		logger.Transition(string(change.From), string(change.To), string(event)),
	)
	a.notify(ctx, change)

	return a.clone(), nil
}

// HandleExpiry expires an active entity whose end date has passed. An active
// entity that is not due yet gets its expiry reminder re-armed; any other
// status is left alone.
func (a *EntityActor[P]) HandleExpiry(ctx context.Context) (Entity[P], error) {
	if a.entity == nil {
		return Entity[P]{}, fmt.Errorf("%w: %s", ErrNotFound, a.key())
	}
	e := a.entity
	if e.Status != StatusActive || e.EndDate == nil {
		return a.clone(), nil
	}
	if a.now().Before(*e.EndDate) {
		return a.clone(), a.registerReminder(ctx, a.policy.ExpiryReminder, *e.EndDate)
	}
	return a.Apply(ctx, EventExpire)
}

func (a *EntityActor[P]) handleStart(ctx context.Context) (Entity[P], error) {
	if a.entity == nil {
		return Entity[P]{}, fmt.Errorf("%w: %s", ErrNotFound, a.key())
	}
	e := a.entity
	if e.Status != StatusPendingActivation {
		return a.clone(), nil
	}
	if e.StartDate != nil && a.now().Before(*e.StartDate) {
		return a.clone(), a.registerReminder(ctx, a.policy.StartReminder, *e.StartDate)
	}
	return a.Apply(ctx, EventStart)
}

// HardDelete removes the record, its index entry and every reminder of the entity.
// Deleting a missing entity is a no-op, so a failed call can be repeated.
func (a *EntityActor[P]) HardDelete(ctx context.Context) error {
	if err := a.entities.Delete(ctx, a.policy.CollectionKey, a.key()); err != nil {
		return err
	}
	if a.entity != nil {
		a.logger.InfoContext(ctx, "entity deleted", logger.Kind(a.policy.Kind))
	}
	a.entity = nil

	// A reminder that survives this finds no entity and is dropped as stale.
	return a.reminders.UnregisterAll(ctx, a.policy.Kind, a.id)
}

// ReceiveReminder handles the expiry and start reminders of the entity.
func (a *EntityActor[P]) ReceiveReminder(ctx context.Context, r actor.Reminder) error {
	var err error
	switch r.Name {
	case a.policy.ExpiryReminder:
		_, err = a.HandleExpiry(ctx)
	case a.policy.StartReminder:
		_, err = a.handleStart(ctx)
	default:
		a.logger.WarnContext(ctx, "ignoring unknown reminder", logger.Reminder(r.Name))
		return nil
	}

	// The entity moved on or is gone; the firing is stale.
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		a.logger.DebugContext(ctx, "stale reminder", logger.Reminder(r.Name), logger.Error(err))
		return nil
	}
	return err
}

// Dispatch serves the Method* calls.
func (a *EntityActor[P]) Dispatch(ctx context.Context, method string, arg []byte) ([]byte, error) {
	var (
		e   Entity[P]
		err error
	)

	switch method {
	case MethodCreate, MethodSetData:
		var in Entity[P]
		if err := json.Unmarshal(arg, &in); err != nil {
			return nil, errors.Join(ErrValidation, err)
		}
		if in.ID == "" {
			in.ID = a.id
		}
		if method == MethodCreate {
			e, err = a.Create(ctx, in)
		} else {
			e, err = a.SetData(ctx, in)
		}
	case MethodGetData:
		e, err = a.GetData(ctx)
	case MethodHandleExpiry:
		e, err = a.HandleExpiry(ctx)
	case MethodHardDelete:
		return nil, a.HardDelete(ctx)
	default:
		event, ok := methodEvents[method]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
		}
		e, err = a.Apply(ctx, event)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// wanted returns the reminders e keeps registered, keyed by name.
func (a *EntityActor[P]) wanted(e *Entity[P]) map[string]time.Time {
	if e == nil {
		return nil
	}
	switch {
	case e.Status == StatusActive && e.EndDate != nil:
		return map[string]time.Time{a.policy.ExpiryReminder: *e.EndDate}
	case e.Status == StatusPendingActivation && e.StartDate != nil:
		return map[string]time.Time{a.policy.StartReminder: *e.StartDate}
	}
	return nil
}

// commit persists next and brings its reminders in line without ever leaving
// the stored state with a reminder missing or due later than it should be.
// A reminder that is new or moves earlier is registered before the write; one
// that moves later, or is no longer needed, is changed after it. A reminder
// left early or stray by a failure fires into a handler that re-arms it or
// does nothing.
func (a *EntityActor[P]) commit(ctx context.Context, next Entity[P]) error {
	prev := a.wanted(a.entity)
	want := a.wanted(&next)

	var before, after []string
	for name, due := range want {
		cur, ok := prev[name]
		switch {
		case !ok || due.Before(cur):
			before = append(before, name)
		case due.After(cur):
			after = append(after, name)
		}
	}

	var registered []string
	for _, name := range before {
		if err := a.registerReminder(ctx, name, want[name]); err != nil {
			return errors.Join(err, a.restore(ctx, registered, prev))
		}
		registered = append(registered, name)
	}

	if err := a.persist(ctx, next); err != nil {
		a.discard(ctx, registered, prev)
		return err
	}

	var errs []error
	for _, name := range after {
		errs = append(errs, a.registerReminder(ctx, name, want[name]))
	}
	if isTerminal(next.Status) {
		errs = append(errs, a.reminders.UnregisterAll(ctx, a.policy.Kind, a.id))
	} else {
		for name := range prev {
			if _, ok := want[name]; !ok {
				errs = append(errs, a.reminders.Unregister(ctx, a.policy.Kind, a.id, name))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.WarnContext(ctx, "reminders left behind after write",
			logger.Kind(a.policy.Kind),
			logger.Error(err),
		)
	}
	return nil
}

// restore puts back the reminders prev had for the given names and removes
// the ones it did not have.
func (a *EntityActor[P]) restore(ctx context.Context, names []string, prev map[string]time.Time) error {
	var errs []error
	for _, name := range names {
		if due, ok := prev[name]; ok {
			errs = append(errs, a.registerReminder(ctx, name, due))
		} else {
			errs = append(errs, a.reminders.Unregister(ctx, a.policy.Kind, a.id, name))
		}
	}
	return errors.Join(errs...)
}

// discard restores the reminders registered for a write that failed. When the
// record cannot be read back, or the write landed before the error, they stay:
// each is due no later than the stored state needs.
func (a *EntityActor[P]) discard(ctx context.Context, names []string, prev map[string]time.Time) {
	if len(names) == 0 || a.entity == nil {
		return
	}
	stored, err := a.entities.Get(ctx, a.key())
	if err != nil || !sameRecord(stored, *a.entity) {
		return
	}
	if err := a.restore(ctx, names, prev); err != nil {
		a.logger.WarnContext(ctx, "reminders not restored after failed write",
			logger.Kind(a.policy.Kind),
			logger.Error(err),
		)
	}
}

func isTerminal(s Status) bool {
	switch s {
	case StatusExpired, StatusCancelled, StatusFailed, StatusDeleted:
		return true
	}
	return false
}

func (a *EntityActor[P]) registerReminder(ctx context.Context, name string, due time.Time) error {
	return a.reminders.Register(ctx, reminder.Reminder{
		ActorType: a.policy.Kind,
		ActorID:   a.id,
		Name:      name,
		DueTime:   due,
	})
}

func (a *EntityActor[P]) persist(ctx context.Context, e Entity[P]) error {
	if err := a.entities.Upsert(ctx, a.policy.CollectionKey, a.key(), e); err != nil {
		return err
	}
	a.entity = &e
	return nil
}

func (a *EntityActor[P]) notify(ctx context.Context, change Change) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, change); err != nil {
		a.logger.ErrorContext(ctx, "change notification failed",
			logger.Transition(string(change.From), string(change.To), string(change.Event)),
			logger.Error(err),
		)
	}
}

func (a *EntityActor[P]) clone() Entity[P] {
	e := *a.entity
	e.History = slices.Clone(e.History)
	return e
}

func sameRecord[P any](a, b Entity[P]) bool {
	return a.Status == b.Status &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		len(a.History) == len(b.History) &&
		sameTime(a.StartDate, b.StartDate) &&
		sameTime(a.EndDate, b.EndDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func appendHistory(history []Change, c Change, limit int) []Change {
	if limit <= 0 {
		return nil
	}
	history = append(history, c)
	if over := len(history) - limit; over > 0 {
		history = slices.Delete(history, 0, over)
	}
	return history
}
