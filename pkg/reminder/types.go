package reminder

import (
	"context"
	"strings"
	"time"
)

const keySeparator = "||"

// Reminder is a durable timer owned by one actor.
type Reminder struct {
	ActorType string        `json:"actor_type"`
	ActorID   string        `json:"actor_id"`
	Name      string        `json:"name"`
	DueTime   time.Time     `json:"due_time"`
	Period    time.Duration `json:"period,omitempty"` // Zero for one-shot reminders
	State     []byte        `json:"state,omitempty"`

	// Set by the scheduler.
	Generation string    `json:"generation"`
	Attempts   int       `json:"attempts,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key is the store key of the reminder. It is unique per (ActorType, ActorID, Name).
func (r Reminder) Key() string {
	return Key(r.ActorType, r.ActorID, r.Name)
}

// Periodic reports whether the reminder repeats.
func (r Reminder) Periodic() bool {
	return r.Period > 0
}

// Key builds the store key of a reminder.
func Key(actorType, actorID, name string) string {
	return strings.Join([]string{"reminder", actorType, actorID, name}, keySeparator)
}

func ownerPrefix(actorType, actorID string) string {
	return strings.Join([]string{"reminder", actorType, actorID, ""}, keySeparator)
}

func (r Reminder) validate() error {
	if r.ActorType == "" || r.ActorID == "" || r.Name == "" || r.Period < 0 {
		return ErrInvalidReminder
	}
	for _, part := range []string{r.ActorType, r.ActorID, r.Name} {
		if strings.Contains(part, keySeparator) {
			return ErrInvalidReminder
		}
	}
	return nil
}

// Deliverer hands a firing to the owning actor.
type Deliverer interface {
	DeliverReminder(ctx context.Context, actorType, actorID, name string, state []byte, dueTime time.Time, period time.Duration) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, actorType, actorID, name string, state []byte, dueTime time.Time, period time.Duration) error

func (f DelivererFunc) DeliverReminder(ctx context.Context, actorType, actorID, name string, state []byte, dueTime time.Time, period time.Duration) error {
	return f(ctx, actorType, actorID, name, state, dueTime, period)
}

// nextDue returns the first due time after now on the period grid of due.
// It also reports how many periods were skipped.
func nextDue(due time.Time, period time.Duration, now time.Time) (time.Time, int) {
	next := due.Add(period)
	if next.After(now) {
		return next, 0
	}
	missed := int(now.Sub(due) / period)
	return due.Add(time.Duration(missed+1) * period), missed
}
