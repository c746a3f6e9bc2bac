package lifecycle

import (
	"context"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/reminder"
)

// Status is the lifecycle state of an entity.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPendingActivation Status = "pending_activation" // Activated with a future start date
	StatusReady             Status = "ready"              // Start date reached, waiting for manual activation
	StatusActive            Status = "active"
	StatusOnHold            Status = "on_hold"
	StatusExpired           Status = "expired"
	StatusCancelled         Status = "cancelled"
	StatusFailed            Status = "failed"
	StatusDeleted           Status = "deleted" // Soft deleted, record kept
)

// Statuses lists every status.
var Statuses = []Status{
	StatusPending,
	StatusPendingActivation,
	StatusReady,
	StatusActive,
	StatusOnHold,
	StatusExpired,
	StatusCancelled,
	StatusFailed,
	StatusDeleted,
}

// Name implements statemachine.State.
func (s Status) Name() string { return string(s) }

// Terminal reports whether no explicit transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusExpired, StatusCancelled, StatusFailed, StatusDeleted:
		return true
	}
	return false
}

// Event triggers a lifecycle transition.
type Event string

const (
	EventActivate Event = "activate"
	EventStart    Event = "start" // Start reminder fired
	EventExpire   Event = "expire"
	EventCancel   Event = "cancel"
	EventSuspend  Event = "suspend"
	EventResume   Event = "resume"
	EventDelete   Event = "delete"
	EventFail     Event = "fail"
	EventRenew    Event = "renew"
)

// Events lists every event.
var Events = []Event{
	EventActivate,
	EventStart,
	EventExpire,
	EventCancel,
	EventSuspend,
	EventResume,
	EventDelete,
	EventFail,
	EventRenew,
}

// Name implements statemachine.Event.
func (e Event) Name() string { return string(e) }

// Entity is the persisted record of one lifecycle-managed item.
type Entity[P any] struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	UserID    string     `json:"user_id"`
	Status    Status     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Payload   P          `json:"payload"`
	History   []Change   `json:"history,omitempty"`
}

// IsActiveAt reports whether the entity is active and not past its end date.
func (e Entity[P]) IsActiveAt(now time.Time) bool {
	return e.Status == StatusActive && (e.EndDate == nil || now.Before(*e.EndDate))
}

// IsExpiredAt reports whether the entity expired, or is active past its end date
// with the expiry not yet processed.
func (e Entity[P]) IsExpiredAt(now time.Time) bool {
	if e.Status == StatusExpired {
		return true
	}
	return e.Status == StatusActive && e.EndDate != nil && !now.Before(*e.EndDate)
}

// Change is one applied transition.
type Change struct {
	EntityID string    `json:"entity_id"`
	Kind     string    `json:"kind"`
	UserID   string    `json:"user_id"`
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Event    Event     `json:"event"`
	At       time.Time `json:"at"`
}

// Notifier receives every applied change. Errors are logged and do not undo the change.
type Notifier interface {
	Notify(ctx context.Context, change Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, change Change) error

func (f NotifierFunc) Notify(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// Host runs entity actors. *actor.Runtime implements it.
type Host interface {
	Register(actorType string, factory actor.Factory) error
	Invoke(ctx context.Context, id actor.ID, fn actor.TurnFunc) error
	Deactivate(ctx context.Context, id actor.ID) error
}

// Reminders registers the entity timers. *reminder.Scheduler implements it.
type Reminders interface {
	Register(ctx context.Context, r reminder.Reminder) error
	// Get returns reminder.ErrNotFound for an unknown reminder.
	Get(ctx context.Context, actorType, actorID, name string) (reminder.Reminder, error)
	Unregister(ctx context.Context, actorType, actorID, name string) error
	UnregisterAll(ctx context.Context, actorType, actorID string) error
}

var (
	_ Host      = (*actor.Runtime)(nil)
	_ Reminders = (*reminder.Scheduler)(nil)
)
