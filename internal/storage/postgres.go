package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ensureKVTableSQL = `CREATE TABLE IF NOT EXISTS kv_store (
        namespace  TEXT        NOT NULL,
        key        TEXT        NOT NULL,
        value      TEXT        NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (namespace, key)
    );`

	getKVSQL = `SELECT value FROM kv_store WHERE namespace = $1 AND key = $2;`

	putKVSQL = `INSERT INTO kv_store (namespace, key, value)
    VALUES ($1, $2, $3)
    ON CONFLICT (namespace, key) DO UPDATE
    SET value      = EXCLUDED.value,
        updated_at = now();`
)

// PGStore is a KV backed by a PostgreSQL table, partitioned by namespace so
// several profiles can share one database.
type PGStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPGStore wires a pgx pool into a KV store.
func NewPGStore(pool *pgxpool.Pool, namespace string) *PGStore {
	if namespace == "" {
		namespace = "default"
	}
	return &PGStore{pool: pool, namespace: namespace}
}

// Close releases the underlying pool resources.
func (s *PGStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PGStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the kv_store table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, ensureKVTableSQL); execErr != nil {
		return fmt.Errorf("ensure kv table: %w", execErr)
	}
	return nil
}

// Get reads one key.
func (s *PGStore) Get(ctx context.Context, key string) ([]byte, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	var value string
	if scanErr := pool.QueryRow(ctx, getKVSQL, s.namespace, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get kv %s: %w", key, scanErr)
	}
	return []byte(value), nil
}

// Put upserts one key.
func (s *PGStore) Put(ctx context.Context, key string, value []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, putKVSQL, s.namespace, key, string(value)); execErr != nil {
		return fmt.Errorf("put kv %s: %w", key, execErr)
	}
	return nil
}

var _ KV = (*PGStore)(nil)
