package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/collection"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
)

// Permanent reports whether a delivery error can never succeed on retry.
func Permanent(err error) bool {
	return errors.Is(err, ErrUndeliverable) ||
		errors.Is(err, actor.ErrUnknownActorType) ||
		errors.Is(err, actor.ErrNotReminderReceiver) ||
		errors.Is(err, actor.ErrInvalidID)
}

// Retryable reports whether a delivery error is transient: the store or the
// runtime was unavailable, or the delivery ran out of time.
func Retryable(err error) bool {
	return kvstore.IsRetryable(err) ||
		errors.Is(err, collection.ErrIndexConflict) ||
		errors.Is(err, actor.ErrRuntimeStopped) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// drop decides whether a one-shot reminder is removed after a failed attempt.
func (s *Scheduler) drop(err error, attempts int) bool {
	switch {
	case Permanent(err):
		return true
	case Retryable(err):
		return false
	default:
		return s.maxAttempts > 0 && attempts >= s.maxAttempts
	}
}

// backoff doubles base for every attempt after the first, up to limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}
