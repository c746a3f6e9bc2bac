package kvstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgSelectQuery = `SELECT value, version FROM kv_items WHERE store = $1 AND key = $2`

	pgUpsertQuery = `
INSERT INTO kv_items (store, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (store, key) DO UPDATE
SET value = EXCLUDED.value, version = nextval('kv_items_version_seq'), updated_at = now()
RETURNING version`

	pgInsertQuery = `
INSERT INTO kv_items (store, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (store, key) DO NOTHING
RETURNING version`

	pgUpdateQuery = `
UPDATE kv_items
SET value = $3, version = nextval('kv_items_version_seq'), updated_at = now()
WHERE store = $1 AND key = $2 AND version = $4
RETURNING version`

	pgDeleteQuery = `DELETE FROM kv_items WHERE store = $1 AND key = $2`

	pgBulkQuery = `SELECT key, value FROM kv_items WHERE store = $1 AND key = ANY($2)`
)

// pgxQuerier is the subset of pgxpool.Pool used by PostgresStore.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)

// PostgresStore implements Store on the kv_items table, partitioned by store name.
type PostgresStore struct {
	db    pgxQuerier
	store string
}

// NewPostgresStore binds a pgx pool to the named logical store.
// The schema from Migrations must be applied beforehand.
func NewPostgresStore(pool *pgxpool.Pool, storeName string) (*PostgresStore, error) {
	if pool == nil || storeName == "" {
		return nil, ErrInvalidConfig
	}
	return &PostgresStore{db: pool, store: storeName}, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.GetVersioned(ctx, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetVersioned implements Store.
func (s *PostgresStore) GetVersioned(ctx context.Context, key string) (Item, error) {
	if key == "" {
		return Item{}, ErrEmptyKey
	}

	var (
		value   []byte
		version int64
	)
	err := s.db.QueryRow(ctx, pgSelectQuery, s.store, key).Scan(&value, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, unavailable(err)
	}

	return Item{Key: key, Value: value, Version: strconv.FormatInt(version, 10)}, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	var version int64
	if err := s.db.QueryRow(ctx, pgUpsertQuery, s.store, key, value).Scan(&version); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := s.db.Exec(ctx, pgDeleteQuery, s.store, key); err != nil {
		return unavailable(err)
	}
	return nil
}

// CompareAndSwap implements Store.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	var (
		row     pgx.Row
		version int64
	)
	if expectedVersion == "" {
		row = s.db.QueryRow(ctx, pgInsertQuery, s.store, key, value)
	} else {
		expected, err := strconv.ParseInt(expectedVersion, 10, 64)
		if err != nil {
			return "", ErrVersionConflict
		}
		row = s.db.QueryRow(ctx, pgUpdateQuery, s.store, key, value, expected)
	}

	err := row.Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrVersionConflict
	}
	if err != nil {
		return "", unavailable(err)
	}
	return strconv.FormatInt(version, 10), nil
}

// BulkGet implements BulkGetter with a single ANY($2) query.
func (s *PostgresStore) BulkGet(ctx context.Context, keys []string) ([]BulkItem, error) {
	rows, err := s.db.Query(ctx, pgBulkQuery, s.store, keys)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable(err)
	}
	defer rows.Close()

	found := make(map[string][]byte, len(keys))
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, unavailable(err)
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, unavailable(err)
	}

	items := make([]BulkItem, len(keys))
	for i, key := range keys {
		value, ok := found[key]
		items[i] = BulkItem{Key: key, Value: value, Found: ok}
	}
	return items, nil
}
