package engine

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/actorkit/pkg/billing"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	store    kvstore.Store
	catalog  *billing.Catalog
	registry *prometheus.Registry
	now      func() time.Time
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStore uses store instead of opening the configured backend.
func WithStore(store kvstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCatalog uses cat instead of loading one.
func WithCatalog(cat *billing.Catalog) Option {
	return func(o *options) {
		o.catalog = cat
	}
}

// WithRegistry registers the metrics with registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithClock replaces the clock used by the entity lifecycles.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
