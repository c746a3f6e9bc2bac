// Package kvstore defines the point-lookup key/value store the engine persists into,
// together with several interchangeable backends.
//
// The store deliberately offers no listing or scanning: callers that need enumeration
// build it on top (see package collection). Besides plain Get/Set/Delete every backend
// supports optimistic concurrency through GetVersioned and CompareAndSwap, which is what
// keeps shared index records consistent without a transactional store.
//
// # Backends
//
//   - MemoryStore   in-process map, for tests and single-node development
//   - RedisStore    github.com/redis/go-redis/v9, hash per key, Lua scripts for CAS
//   - MongoStore    go.mongodb.org/mongo-driver/v2, one document per key
//   - PostgresStore github.com/jackc/pgx/v5, kv_items table (see Migrations)
//   - S3Store       aws-sdk-go-v2 S3, object per key, ETag as version
//
// # Usage
//
//	store := kvstore.NewMemoryStore()
//	_ = store.Set(ctx, "sub-1", []byte(`{"status":"active"}`))
//
//	items, err := kvstore.BulkGet(ctx, store, []string{"sub-1", "sub-2"}, 10)
//	for _, it := range items {
//	    if !it.Found { continue }
//	    // it.Value ...
//	}
//
// # Error Handling
//
// ErrNotFound reports an absent key. Infrastructure failures are joined with
// ErrStoreUnavailable so callers can decide on retries with IsRetryable. The store
// itself never retries.
package kvstore
