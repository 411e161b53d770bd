package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"marketwatch/internal/config"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
)

// SampleWriter is the sampler's view of the store.
type SampleWriter interface {
	InsertSample(ctx context.Context, sample Sample) (bool, error)
}

// SampleReader is the reporting view of the store.
type SampleReader interface {
	ListSamples(ctx context.Context, since *time.Time) ([]Sample, error)
}

// SampleStore is the full persistence contract.
type SampleStore interface {
	SampleWriter
	SampleReader
	EnsureSchema(ctx context.Context) error
	ListRecentSamples(ctx context.Context, limit int) ([]Sample, error)
	CountSamples(ctx context.Context) (int64, error)
	Close()
}

// Open connects to the configured backend and makes sure the table exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (SampleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	var (
		store SampleStore
		err   error
	)
	switch cfg.Driver {
	case "postgres", "":
		var pool *pgxpool.Pool
		pool, err = NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = NewPostgresStore(pool, cfg.Table)
	case "mysql":
		store, err = OpenMySQL(cfg, logger)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	logger.Debug().Str("driver", cfg.Driver).Str("table", cfg.Table).Msg("sample store ready")
	return store, nil
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
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
