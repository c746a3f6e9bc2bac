package kvstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldValue   = "v"
	redisFieldVersion = "ver"
)

// Versions come from one sequence per store so a deleted and recreated key never
// reuses a version an old reader may still hold.
const redisSetScript = `
local ver = redis.call("INCR", KEYS[2])
redis.call("HSET", KEYS[1], "v", ARGV[1], "ver", ver)
return ver
`

const redisCASScript = `
local cur = redis.call("HGET", KEYS[1], "ver")
if (cur or "") ~= ARGV[2] then
  return -1
end
local ver = redis.call("INCR", KEYS[2])
redis.call("HSET", KEYS[1], "v", ARGV[1], "ver", ver)
return ver
`

// RedisStore implements Store on top of a Redis hash per key.
// Keys share a hash tag so the scripts stay single-slot on Redis Cluster.
type RedisStore struct {
	db     redis.UniversalClient
	prefix string
	set    *redis.Script
	cas    *redis.Script
}

// NewRedisStore binds a Redis client to the named logical store.
func NewRedisStore(client redis.UniversalClient, storeName string) (*RedisStore, error) {
	if client == nil || storeName == "" {
		return nil, ErrInvalidConfig
	}
	return &RedisStore{
		db:     client,
		prefix: "{" + storeName + "}:",
		set:    redis.NewScript(redisSetScript),
		cas:    redis.NewScript(redisCASScript),
	}, nil
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) seqKey() string { return s.prefix + "__seq" }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.GetVersioned(ctx, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetVersioned implements Store.
func (s *RedisStore) GetVersioned(ctx context.Context, key string) (Item, error) {
	if key == "" {
		return Item{}, ErrEmptyKey
	}

	vals, err := s.db.HMGet(ctx, s.key(key), redisFieldValue, redisFieldVersion).Result()
	if err != nil {
		return Item{}, unavailable(err)
	}

	value, ok := vals[0].(string)
	if !ok {
		return Item{}, ErrNotFound
	}
	version, _ := vals[1].(string)

	return Item{Key: key, Value: []byte(value), Version: version}, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.set.Run(ctx, s.db, []string{s.key(key), s.seqKey()}, value).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.db.Del(ctx, s.key(key)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// CompareAndSwap implements Store.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	ver, err := s.cas.Run(ctx, s.db, []string{s.key(key), s.seqKey()}, value, expectedVersion).Int64()
	if err != nil {
		return "", unavailable(err)
	}
	if ver < 0 {
		return "", ErrVersionConflict
	}
	return strconv.FormatInt(ver, 10), nil
}

// BulkGet implements BulkGetter using a single pipeline round trip.
func (s *RedisStore) BulkGet(ctx context.Context, keys []string) ([]BulkItem, error) {
	pipe := s.db.Pipeline()
	cmds := make([]*redis.SliceCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HMGet(ctx, s.key(k), redisFieldValue)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable(err)
	}

	items := make([]BulkItem, len(keys))
	for i, cmd := range cmds {
		items[i] = BulkItem{Key: keys[i]}
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		if value, ok := vals[0].(string); ok {
			items[i].Value = []byte(value)
			items[i].Found = true
		}
	}
	return items, nil
}

// Conn returns the underlying Redis client.
func (s *RedisStore) Conn() redis.UniversalClient {
	return s.db
}
