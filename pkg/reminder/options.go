package reminder

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// DefaultIndexKey is the collection key listing every persisted reminder.
const DefaultIndexKey = "actorkit||reminders"

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	indexKey        string
	maxDeliveries   int
	retryDelay      time.Duration
	maxRetryDelay   time.Duration
	maxAttempts     int
	deliveryTimeout time.Duration
	idleWait        time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

func defaultSchedulerOptions() *schedulerOptions {
	return &schedulerOptions{
		indexKey:        DefaultIndexKey,
		maxDeliveries:   10,
		retryDelay:      30 * time.Second,
		maxRetryDelay:   10 * time.Minute,
		deliveryTimeout: time.Minute,
		idleWait:        time.Minute,
		logger:          slog.Default(),
	}
}

// WithIndexKey sets the collection key of the reminder index.
func WithIndexKey(key string) SchedulerOption {
	return func(o *schedulerOptions) {
		if key != "" {
			o.indexKey = key
		}
	}
}

// WithMaxConcurrentDeliveries bounds deliveries running at the same time.
func WithMaxConcurrentDeliveries(n int) SchedulerOption {
	return func(o *schedulerOptions) {
		if n > 0 {
			o.maxDeliveries = n
		}
	}
}

// WithRetryDelay sets the delay before the first retry of a failed one-shot
// delivery. Later retries double it up to WithMaxRetryDelay.
func WithRetryDelay(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithMaxRetryDelay caps the backoff between retries.
func WithMaxRetryDelay(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.maxRetryDelay = d
		}
	}
}

// WithMaxAttempts bounds the attempts of a one-shot delivery failing with an
// error that is neither retryable nor permanent, such as a receiver bug.
// Retryable failures are never dropped. Unbounded by default.
func WithMaxAttempts(n int) SchedulerOption {
	return func(o *schedulerOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithDeliveryTimeout bounds a single delivery.
func WithDeliveryTimeout(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.deliveryTimeout = d
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables delivery instruments.
func WithMetrics(m *metrics.Metrics) SchedulerOption {
	return func(o *schedulerOptions) {
		o.metrics = m
	}
}
