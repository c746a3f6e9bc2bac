package actor

import (
	"context"
	"time"
)

// ID addresses one actor instance.
type ID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (id ID) String() string {
	return id.Type + "/" + id.ID
}

func (id ID) validate() error {
	if id.Type == "" || id.ID == "" {
		return ErrInvalidID
	}
	return nil
}

// Actor is any value built by a Factory. Behavior is added through the optional
// interfaces below.
type Actor any

// Factory builds the actor for id on activation.
type Factory func(id ID) (Actor, error)

// TurnFunc is the body of one turn. It runs with exclusive access to the actor.
type TurnFunc func(ctx context.Context, a Actor) error

// Activator is implemented by actors that load state when activated.
type Activator interface {
	OnActivate(ctx context.Context) error
}

// Deactivator is implemented by actors that release resources when deactivated.
type Deactivator interface {
	OnDeactivate(ctx context.Context) error
}

// Dispatcher is implemented by actors reachable through Runtime.Call.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, arg []byte) ([]byte, error)
}

// Reminder describes one reminder firing handed to an actor.
type Reminder struct {
	Name    string
	State   []byte
	DueTime time.Time
	Period  time.Duration
}

// ReminderReceiver is implemented by actors that register reminders.
type ReminderReceiver interface {
	ReceiveReminder(ctx context.Context, r Reminder) error
}

// State is the activation state of an actor instance.
type State string

const (
	StateInactive     State = "inactive"
	StateActivating   State = "activating"
	StateActive       State = "active"
	StateDeactivating State = "deactivating"
)

// Stats is a snapshot of the runtime.
type Stats struct {
	Actors  int            `json:"actors"`
	ByType  map[string]int `json:"by_type"`
	ByState map[State]int  `json:"by_state"`
}
