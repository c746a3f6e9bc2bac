package collection

import (
	"log/slog"

	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// DefaultMaxCASRetries bounds index compare-and-swap attempts per mutation.
const DefaultMaxCASRetries = 16

// Option configures a Collection.
type Option func(*options)

type options struct {
	codec       Codec
	parallelism int
	maxRetries  int
	backoff     BackoffStrategy
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func defaultOptions() *options {
	return &options{
		codec:       JSONCodec{},
		parallelism: kvstore.DefaultBulkParallelism,
		maxRetries:  DefaultMaxCASRetries,
		backoff:     DefaultBackoff(),
		logger:      slog.Default(),
	}
}

// WithCodec sets the member value codec.
func WithCodec(codec Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithParallelism bounds concurrent member reads in GetAll.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithMaxCASRetries bounds compare-and-swap attempts per index mutation.
func WithMaxCASRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the delay strategy between compare-and-swap attempts.
func WithBackoff(b BackoffStrategy) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithLogger sets the logger used for skipped members and conflicts.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables conflict and stale member counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
