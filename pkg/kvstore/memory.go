package kvstore

import (
	"context"
	"slices"
	"strconv"
	"sync"
)

type memoryEntry struct {
	value   []byte
	version uint64
}

// MemoryStore implements Store in process memory for testing and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	seq     uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

// Get implements Store.
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := ms.GetVersioned(ctx, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetVersioned implements Store.
func (ms *MemoryStore) GetVersioned(ctx context.Context, key string) (Item, error) {
	if key == "" {
		return Item{}, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, ok := ms.entries[key]
	if !ok {
		return Item{}, ErrNotFound
	}

	// Clone so callers cannot mutate stored bytes
	return Item{
		Key:     key,
		Value:   slices.Clone(entry.value),
		Version: strconv.FormatUint(entry.version, 10),
	}, nil
}

// Set implements Store.
func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.seq++
	ms.entries[key] = memoryEntry{value: slices.Clone(value), version: ms.seq}
	return nil
}

// Delete implements Store.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, key)
	return nil
}

// CompareAndSwap implements Store.
func (ms *MemoryStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.entries[key]
	switch {
	case !exists && expectedVersion != "":
		return "", ErrVersionConflict
	case exists && strconv.FormatUint(entry.version, 10) != expectedVersion:
		return "", ErrVersionConflict
	}

	ms.seq++
	ms.entries[key] = memoryEntry{value: slices.Clone(value), version: ms.seq}
	return strconv.FormatUint(ms.seq, 10), nil
}

// Len returns the number of stored keys.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.entries)
}
