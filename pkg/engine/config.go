package engine

import (
	"time"

	"github.com/dmitrymomot/actorkit/pkg/httpserver"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
	"github.com/dmitrymomot/actorkit/pkg/mongo"
	"github.com/dmitrymomot/actorkit/pkg/pg"
	"github.com/dmitrymomot/actorkit/pkg/redis"
	"github.com/dmitrymomot/actorkit/pkg/webhook"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config is the environment-driven engine configuration.
type Config struct {
	// Backend is one of memory, redis, mongo, postgres or s3.
	Backend string `env:"STORE_BACKEND" envDefault:"memory"`
	// StoreName names the logical store inside the backend.
	StoreName string `env:"STORE_NAME" envDefault:"actorkit"`
	// Catalog is a YAML billing catalog. The embedded catalog is used when empty.
	Catalog string `env:"BILLING_CATALOG_PATH"`

	ReminderIndexKey string        `env:"REMINDER_INDEX_KEY" envDefault:"actorkit||reminders"`
	MaxDeliveries    int           `env:"REMINDER_MAX_DELIVERIES" envDefault:"10"`
	RetryDelay       time.Duration `env:"REMINDER_RETRY_DELAY" envDefault:"30s"`
	MaxRetryDelay    time.Duration `env:"REMINDER_MAX_RETRY_DELAY" envDefault:"10m"`
	IdleTimeout      time.Duration `env:"ACTOR_IDLE_TIMEOUT" envDefault:"15m"`
	ReapInterval     time.Duration `env:"ACTOR_REAP_INTERVAL" envDefault:"1m"`
	BulkParallelism  int           `env:"COLLECTION_PARALLELISM" envDefault:"16"`
	StopTimeout      time.Duration `env:"ENGINE_STOP_TIMEOUT" envDefault:"30s"`

	HTTP     httpserver.Config
	Log      logger.Config
	Metrics  metrics.Config
	Redis    redis.Config
	Mongo    mongo.Config
	Postgres pg.Config
	S3       kvstore.S3Config
	Webhook  webhook.Config
}
