package reminder

import "errors"

var (
	// ErrInvalidReminder is returned when a reminder misses its identity or has a negative period.
	ErrInvalidReminder = errors.New("reminder: invalid reminder")

	// ErrNotFound is returned by Get for unknown reminders.
	ErrNotFound = errors.New("reminder: not found")

	// ErrDelivererNil is returned by NewScheduler without a deliverer.
	ErrDelivererNil = errors.New("reminder: deliverer is required")

	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("reminder: scheduler already started")

	// ErrUndeliverable marks a delivery error that no retry can fix. Deliverers
	// wrap it to have the reminder dropped at once.
	ErrUndeliverable = errors.New("reminder: undeliverable")

	// ErrDeliveryPanicked wraps a panic raised by the deliverer.
	ErrDeliveryPanicked = errors.New("reminder: panic in delivery")
)
