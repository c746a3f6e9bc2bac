// Package collection maintains a secondary index over a point-lookup key/value
// store so that "list every member of X" works on backends without scans.
//
// A Collection stores each member value under its own key and keeps an index
// record, a JSON array of member keys, under the collection key. Writes go
// value first, index second:
//
//	subs, _ := collection.New[Subscription](store)
//	_ = subs.Upsert(ctx, "subscriptions", "subscription||sub-1", sub)
//	all, _ := subs.GetAll(ctx, "subscriptions")
//
// Index mutations are read-modify-write cycles guarded by the store's
// compare-and-swap. A lost race is retried with jittered backoff up to
// WithMaxCASRetries times and then reported as ErrIndexConflict. Mutations of
// one collection key from the same process are additionally serialized so
// local writers do not spend their retries on each other.
//
// The index is eventually consistent with the member values. A crash between
// the two writes leaves either an orphan value (invisible to GetAll, still
// readable with Get) or a stale member (skipped by GetAll and removed by
// Repair). Get is always the source of truth.
package collection
