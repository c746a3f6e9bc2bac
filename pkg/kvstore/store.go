package kvstore

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// DefaultBulkParallelism bounds concurrent point reads issued by BulkGet.
const DefaultBulkParallelism = 10

// Item is a stored value together with the version it was read at.
type Item struct {
	Key     string
	Value   []byte
	Version string
}

// BulkItem is one result of BulkGet. Found is false when the key does not exist.
type BulkItem struct {
	Key   string
	Value []byte
	Found bool
}

// Store is a point-lookup key/value store without listing capabilities.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key unconditionally.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetVersioned returns the value and its current version or ErrNotFound.
	GetVersioned(ctx context.Context, key string) (Item, error)

	// CompareAndSwap writes value only if the stored version equals expectedVersion.
	// An empty expectedVersion requires the key to be absent.
	// Returns the new version or ErrVersionConflict.
	CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion string) (string, error)
}

// BulkGetter is implemented by backends able to fetch many keys in one round trip.
type BulkGetter interface {
	BulkGet(ctx context.Context, keys []string) ([]BulkItem, error)
}

// BulkGet fetches keys with at most parallelism concurrent reads and returns results
// in the order of keys. Missing keys are reported with Found=false.
// If ctx is cancelled the outstanding reads are abandoned and the context error returned.
func BulkGet(ctx context.Context, store Store, keys []string, parallelism int) ([]BulkItem, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	if bg, ok := store.(BulkGetter); ok {
		return bg.BulkGet(ctx, keys)
	}

	if parallelism <= 0 {
		parallelism = DefaultBulkParallelism
	}

	items := make([]BulkItem, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			value, err := store.Get(gctx, key)
			switch {
			case err == nil:
				items[i] = BulkItem{Key: key, Value: value, Found: true}
			case errors.Is(err, ErrNotFound):
				items[i] = BulkItem{Key: key}
			default:
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return items, nil
}
