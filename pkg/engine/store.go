package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/actorkit/pkg/httpserver"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/mongo"
	"github.com/dmitrymomot/actorkit/pkg/pg"
	"github.com/dmitrymomot/actorkit/pkg/redis"
)

// backend is an opened store with its readiness check and release function.
type backend struct {
	store kvstore.Store
	check httpserver.Check
	close func(context.Context) error
}

func openStore(ctx context.Context, cfg Config, log *slog.Logger) (backend, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return backend{store: kvstore.NewMemoryStore()}, nil

	case BackendRedis:
		store, client, err := redis.NewStore(ctx, cfg.Redis, cfg.StoreName)
		if err != nil {
			return backend{}, err
		}
		return backend{
			store: store,
			check: redis.Healthcheck(client),
			close: func(context.Context) error { return client.Close() },
		}, nil

	case BackendMongo:
		store, client, err := mongo.NewStore(ctx, cfg.Mongo, cfg.StoreName)
		if err != nil {
			return backend{}, err
		}
		return backend{
			store: store,
			check: mongo.Healthcheck(client),
			close: client.Disconnect,
		}, nil

	case BackendPostgres:
		store, pool, err := pg.NewStore(ctx, cfg.Postgres, cfg.StoreName, log)
		if err != nil {
			return backend{}, err
		}
		return backend{
			store: store,
			check: pg.Healthcheck(pool),
			close: func(context.Context) error { pool.Close(); return nil },
		}, nil

	case BackendS3:
		store, err := kvstore.NewS3Store(ctx, cfg.S3, cfg.StoreName)
		if err != nil {
			return backend{}, err
		}
		return backend{store: store}, nil
	}
	return backend{}, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
