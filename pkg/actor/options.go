package actor

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	idleTimeout       time.Duration
	reapInterval      time.Duration
	mailboxSize       int
	deactivateTimeout time.Duration
	logger            *slog.Logger
	metrics           *metrics.Metrics
}

func defaultOptions() *options {
	return &options{
		idleTimeout:       15 * time.Minute,
		reapInterval:      time.Minute,
		mailboxSize:       64,
		deactivateTimeout: 30 * time.Second,
		logger:            slog.Default(),
	}
}

// WithIdleTimeout sets how long an actor may stay without calls before it is deactivated.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

// WithReapInterval sets how often idle actors are looked for.
func WithReapInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reapInterval = d
		}
	}
}

// WithMailboxSize sets the number of calls that may queue for one actor before callers block.
func WithMailboxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mailboxSize = n
		}
	}
}

// WithDeactivateTimeout bounds OnDeactivate.
func WithDeactivateTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deactivateTimeout = d
		}
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables turn and activation instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
