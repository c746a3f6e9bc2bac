package actor

import "errors"

var (
	ErrUnknownActorType    = errors.New("actor: unknown actor type")
	ErrInvalidID           = errors.New("actor: invalid actor id")
	ErrAlreadyRegistered   = errors.New("actor: actor type already registered")
	ErrActivationFailed    = errors.New("actor: activation failed")
	ErrRuntimeStopped      = errors.New("actor: runtime stopped")
	ErrRuntimeStarted      = errors.New("actor: runtime already started")
	ErrNotDispatcher       = errors.New("actor: actor does not accept method calls")
	ErrMethodNotFound      = errors.New("actor: method not found")
	ErrNotReminderReceiver = errors.New("actor: actor does not receive reminders")
	ErrTurnPanicked        = errors.New("actor: panic in turn")
)
