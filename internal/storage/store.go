package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"gsrwatch/internal/config"
)

// Backend names accepted by storage.backend.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Open builds the configured KV backend. The returned closer is never nil.
func Open(ctx context.Context, cfg config.StorageConfig) (KV, func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		if cfg.Path == "" {
			return nil, noop, fmt.Errorf("storage.path is required for the file backend")
		}
		return NewFileKV(cfg.Path), noop, nil
	case BackendMemory:
		return NewMemoryKV(), noop, nil
	case BackendPostgres:
		pool, err := NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store := NewPGStore(pool, cfg.Namespace)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage.backend %q", cfg.Backend)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
