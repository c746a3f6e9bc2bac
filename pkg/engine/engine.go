package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/actorkit/pkg/actor"
	"github.com/dmitrymomot/actorkit/pkg/billing"
	"github.com/dmitrymomot/actorkit/pkg/httpserver"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
	"github.com/dmitrymomot/actorkit/pkg/reminder"
	"github.com/dmitrymomot/actorkit/pkg/webhook"
)

const defaultStopTimeout = 30 * time.Second

// Engine owns the store, the actor runtime, the reminder scheduler and the
// billing services built on them.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store     kvstore.Store
	runtime   *actor.Runtime
	scheduler *reminder.Scheduler
	services  *billing.Services
	webhook   *webhook.Notifier

	checks map[string]httpserver.Check
	close  func(context.Context) error
}

// New opens the store and wires the components. Nothing runs until Start or Run.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.ReminderIndexKey == "" {
		cfg.ReminderIndexKey = reminder.DefaultIndexKey
	}

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   o.logger,
		registry: registry,
		metrics:  metrics.New(registry, cfg.Metrics),
		checks:   make(map[string]httpserver.Check),
	}

	if o.store != nil {
		e.store = o.store
	} else {
		b, err := openStore(ctx, cfg, o.logger.With(logger.Component("store")))
		if err != nil {
			return nil, fmt.Errorf("engine: open %s store: %w", cfg.Backend, err)
		}
		e.store = b.store
		e.close = b.close
		if b.check != nil {
			e.checks["backend"] = b.check
		}
	}

	cat := o.catalog
	if cat == nil {
		var err error
		if cfg.Catalog != "" {
			cat, err = billing.LoadCatalogFile(cfg.Catalog)
		} else {
			cat, err = billing.DefaultCatalog()
		}
		if err != nil {
			return nil, errors.Join(err, e.release(ctx))
		}
	}

	e.runtime = actor.NewRuntime(
		actor.WithIdleTimeout(cfg.IdleTimeout),
		actor.WithReapInterval(cfg.ReapInterval),
		actor.WithDeactivateTimeout(cfg.StopTimeout),
		actor.WithLogger(o.logger),
		actor.WithMetrics(e.metrics),
	)

	scheduler, err := reminder.NewScheduler(e.store, e.runtime,
		reminder.WithIndexKey(cfg.ReminderIndexKey),
		reminder.WithMaxConcurrentDeliveries(cfg.MaxDeliveries),
		reminder.WithRetryDelay(cfg.RetryDelay),
		reminder.WithMaxRetryDelay(cfg.MaxRetryDelay),
		reminder.WithLogger(o.logger),
		reminder.WithMetrics(e.metrics),
	)
	if err != nil {
		return nil, errors.Join(err, e.release(ctx))
	}
	e.scheduler = scheduler

	lifecycleOpts := []lifecycle.Option{
		lifecycle.WithLogger(o.logger),
		lifecycle.WithMetrics(e.metrics),
		lifecycle.WithBulkParallelism(cfg.BulkParallelism),
	}
	if o.now != nil {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithClock(o.now))
	}
	if cfg.Webhook.Enabled() {
		n, err := webhook.New(cfg.Webhook, webhook.WithLogger(o.logger.With(logger.Component("webhook"))))
		if err != nil {
			return nil, errors.Join(err, e.release(ctx))
		}
		e.webhook = n
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithNotifier(n))
	}
	services, err := billing.NewServices(cat, e.runtime, e.store, e.scheduler, lifecycleOpts...)
	if err != nil {
		return nil, errors.Join(err, e.release(ctx))
	}
	e.services = services

	return e, nil
}

// Store returns the key/value store.
func (e *Engine) Store() kvstore.Store {
	return e.store
}

// Runtime returns the actor runtime.
func (e *Engine) Runtime() *actor.Runtime {
	return e.runtime
}

// Scheduler returns the reminder scheduler.
func (e *Engine) Scheduler() *reminder.Scheduler {
	return e.scheduler
}

// Services returns the billing services.
func (e *Engine) Services() *billing.Services {
	return e.services
}

// Registry returns the metrics registry served on /metrics.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

// Start starts the runtime, then re-arms persisted reminders and starts
// delivering them.
func (e *Engine) Start(ctx context.Context) error {
	if e.webhook != nil {
		e.webhook.Start()
	}
	if err := e.runtime.Start(ctx); err != nil {
		return err
	}
	if err := e.scheduler.Start(ctx); err != nil {
		return errors.Join(err, e.runtime.Stop(context.WithoutCancel(ctx)))
	}
	return nil
}

// Stop stops delivering reminders, deactivates every actor, drains pending
// webhook deliveries and releases the store, in that order.
func (e *Engine) Stop(ctx context.Context) error {
	errs := []error{
		e.scheduler.Stop(ctx),
		e.runtime.Stop(ctx),
	}
	if e.webhook != nil {
		errs = append(errs, e.webhook.Stop(ctx))
	}
	return errors.Join(append(errs, e.release(ctx))...)
}

// Run starts the engine and serves Handler on the configured HTTP address
// until ctx is done, then stops within StopTimeout.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv := httpserver.New(e.cfg.HTTP, httpserver.WithLogger(e.logger))
		return srv.Run(gctx, e.Handler())
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.StopTimeout)
		defer cancel()
		return e.Stop(stopCtx)
	})
	return g.Wait()
}

func (e *Engine) release(ctx context.Context) error {
	if e.close == nil {
		return nil
	}
	release := e.close
	e.close = nil
	return release(ctx)
}
