package lifecycle

import (
	"fmt"
	"time"
)

const (
	DefaultExpiryReminder = "expiry"
	DefaultStartReminder  = "start"
)

// Policy describes one entity kind.
type Policy[P any] struct {
	// Kind is the actor type and the Kind of every entity.
	Kind string
	// CollectionKey indexes every entity of the kind.
	CollectionKey string

	ExpiryReminder string
	StartReminder  string

	// Duration returns how long an activated entity stays active when it has no
	// end date yet. Zero means it never expires.
	Duration func(e Entity[P]) time.Duration

	// Validate checks the payload on SetData.
	Validate func(payload P) error

	// CheckActivation rejects an activation. A pending entity failing the
	// check moves to Failed.
	CheckActivation func(e Entity[P]) error

	// AutoStart activates an entity when its start date is reached.
	// Otherwise it moves to Ready and waits for an explicit activation.
	AutoStart bool
}

func (p Policy[P]) withDefaults() (Policy[P], error) {
	if p.Kind == "" || p.CollectionKey == "" {
		return p, fmt.Errorf("%w: kind and collection key are required", ErrInvalidPolicy)
	}
	if p.ExpiryReminder == "" {
		p.ExpiryReminder = DefaultExpiryReminder
	}
	if p.StartReminder == "" {
		p.StartReminder = DefaultStartReminder
	}
	if p.ExpiryReminder == p.StartReminder {
		return p, fmt.Errorf("%w: expiry and start reminders share the name %q", ErrInvalidPolicy, p.StartReminder)
	}
	return p, nil
}

func (p Policy[P]) duration(e Entity[P]) time.Duration {
	if p.Duration == nil {
		return 0
	}
	return p.Duration(e)
}

func (p Policy[P]) validate(payload P) error {
	if p.Validate == nil {
		return nil
	}
	return p.Validate(payload)
}

func (p Policy[P]) checkActivation(e Entity[P]) error {
	if p.CheckActivation == nil {
		return nil
	}
	return p.CheckActivation(e)
}
