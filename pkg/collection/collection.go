package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/metrics"
)

// Collection is an indexed set of T values on top of a kvstore.Store.
// A single Collection may serve many collection keys; they share its options.
type Collection[T any] struct {
	store       kvstore.Store
	codec       Codec
	parallelism int
	maxRetries  int
	backoff     BackoffStrategy
	logger      *slog.Logger
	metrics     *metrics.Metrics
	locks       *keyedMutex
}

// New creates a Collection over store.
func New[T any](store kvstore.Store, opts ...Option) (*Collection[T], error) {
	if store == nil {
		return nil, fmt.Errorf("collection: store is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Collection[T]{
		store:       store,
		codec:       o.codec,
		parallelism: o.parallelism,
		maxRetries:  o.maxRetries,
		backoff:     o.backoff,
		logger:      o.logger.With(logger.Component("collection")),
		metrics:     o.metrics,
		locks:       newKeyedMutex(),
	}, nil
}

// Store returns the underlying store.
func (c *Collection[T]) Store() kvstore.Store {
	return c.store
}

func validateKeys(collectionKey, memberKey string) error {
	if collectionKey == "" || memberKey == "" || collectionKey == memberKey {
		return ErrInvalidKey
	}
	return nil
}

// Upsert writes value under memberKey and makes sure memberKey is listed in the
// index record of collectionKey. Repeating the call never duplicates the member.
func (c *Collection[T]) Upsert(ctx context.Context, collectionKey, memberKey string, value T) error {
	if err := validateKeys(collectionKey, memberKey); err != nil {
		return err
	}

	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("collection: encode %s: %w", memberKey, err)
	}

	if err := c.store.Set(ctx, memberKey, data); err != nil {
		return err
	}

	return c.mutateIndex(ctx, collectionKey, func(members []string) ([]string, bool) {
		if slices.Contains(members, memberKey) {
			return members, false
		}
		return append(members, memberKey), true
	})
}

// Get returns the value stored under memberKey.
func (c *Collection[T]) Get(ctx context.Context, memberKey string) (T, error) {
	var zero T
	if memberKey == "" {
		return zero, ErrInvalidKey
	}

	data, err := c.store.Get(ctx, memberKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return zero, errors.Join(ErrNotFound, err)
	}
	if err != nil {
		return zero, err
	}

	var value T
	if err := c.codec.Unmarshal(data, &value); err != nil {
		return zero, errors.Join(ErrDecode, err)
	}
	return value, nil
}

// Keys returns the members listed in the index record of collectionKey.
func (c *Collection[T]) Keys(ctx context.Context, collectionKey string) ([]string, error) {
	if collectionKey == "" {
		return nil, ErrInvalidKey
	}
	members, _, err := c.readIndex(ctx, collectionKey)
	return members, err
}

// GetAll returns every readable member of collectionKey in index order.
// Members whose value is missing or cannot be decoded are logged and skipped.
// If ctx is cancelled partial results are discarded and the context error returned.
func (c *Collection[T]) GetAll(ctx context.Context, collectionKey string) ([]T, error) {
	members, err := c.Keys(ctx, collectionKey)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []T{}, nil
	}

	items, err := kvstore.BulkGet(ctx, c.store, members, c.parallelism)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]T, 0, len(items))
	for _, item := range items {
		if !item.Found {
			c.metrics.IncStaleMember(collectionKey)
			c.logger.WarnContext(ctx, "skipping index member",
				logger.Collection(collectionKey),
				logger.Member(item.Key),
				logger.Error(ErrStaleIndex),
			)
			continue
		}

		var value T
		if err := c.codec.Unmarshal(item.Value, &value); err != nil {
			c.metrics.IncStaleMember(collectionKey)
			c.logger.ErrorContext(ctx, "skipping undecodable member",
				logger.Collection(collectionKey),
				logger.Member(item.Key),
				logger.Errors(ErrDecode, err),
			)
			continue
		}
		result = append(result, value)
	}

	return result, nil
}

// Delete removes the value under memberKey and then drops it from the index
// record of collectionKey. Deleting an absent member is a no-op.
func (c *Collection[T]) Delete(ctx context.Context, collectionKey, memberKey string) error {
	if err := validateKeys(collectionKey, memberKey); err != nil {
		return err
	}

	if err := c.store.Delete(ctx, memberKey); err != nil {
		return err
	}

	return c.mutateIndex(ctx, collectionKey, func(members []string) ([]string, bool) {
		i := slices.Index(members, memberKey)
		if i < 0 {
			return members, false
		}
		return slices.Delete(members, i, i+1), true
	})
}

// Repair drops index members of collectionKey whose value no longer exists and
// returns how many were removed.
func (c *Collection[T]) Repair(ctx context.Context, collectionKey string) (int, error) {
	members, err := c.Keys(ctx, collectionKey)
	if err != nil || len(members) == 0 {
		return 0, err
	}

	items, err := kvstore.BulkGet(ctx, c.store, members, c.parallelism)
	if err != nil {
		return 0, err
	}

	missing := make(map[string]struct{})
	for _, item := range items {
		if !item.Found {
			missing[item.Key] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	removed := 0
	err = c.mutateIndex(ctx, collectionKey, func(members []string) ([]string, bool) {
		before := len(members)
		members = slices.DeleteFunc(members, func(m string) bool {
			_, gone := missing[m]
			return gone
		})
		removed = before - len(members)
		return members, removed > 0
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		c.logger.InfoContext(ctx, "repaired index",
			logger.Collection(collectionKey),
			slog.Int("removed", removed),
		)
	}
	return removed, nil
}

// readIndex returns the member list and the version it was read at.
// An absent index yields no members and an empty version.
func (c *Collection[T]) readIndex(ctx context.Context, collectionKey string) ([]string, string, error) {
	item, err := c.store.GetVersioned(ctx, collectionKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	var members []string
	if len(item.Value) > 0 {
		if err := json.Unmarshal(item.Value, &members); err != nil {
			return nil, "", errors.Join(ErrCorruptIndex, err)
		}
	}
	return members, item.Version, nil
}

// mutateIndex applies fn to the index record of collectionKey with compare-and-swap,
// retrying with backoff when another writer got there first.
func (c *Collection[T]) mutateIndex(ctx context.Context, collectionKey string, fn func([]string) ([]string, bool)) error {
	unlock, err := c.locks.lock(ctx, collectionKey)
	if err != nil {
		return err
	}
	defer unlock()

	for attempt := range c.maxRetries {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff.NextInterval(attempt)); err != nil {
				return err
			}
		}

		members, version, err := c.readIndex(ctx, collectionKey)
		if err != nil {
			return err
		}

		next, changed := fn(members)
		if !changed {
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = c.store.CompareAndSwap(ctx, collectionKey, data, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, kvstore.ErrVersionConflict) {
			return err
		}

		c.metrics.IncCASConflict(collectionKey)
		c.logger.DebugContext(ctx, "index compare-and-swap conflict",
			logger.Collection(collectionKey),
			logger.Attempt(attempt+1),
		)
	}

	return ErrIndexConflict
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
