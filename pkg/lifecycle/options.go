package lifecycle

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// DefaultHistoryLimit bounds Entity.History.
const DefaultHistoryLimit = 20

// Option configures a Service.
type Option func(*options)

type options struct {
	now          func() time.Time
	notifier     Notifier
	historyLimit int
	parallelism  int
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

func defaultOptions() *options {
	return &options{
		now:          func() time.Time { return time.Now().UTC() },
		historyLimit: DefaultHistoryLimit,
		logger:       slog.Default(),
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNotifier sets the receiver of applied changes.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithHistoryLimit bounds how many changes an entity keeps. Zero disables history.
func WithHistoryLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.historyLimit = n
		}
	}
}

// WithBulkParallelism bounds concurrent reads of list queries.
func WithBulkParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables transition counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
