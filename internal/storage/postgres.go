package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketwatch/internal/failure"
)

const defaultTable = "market_prices"

const (
	pgCreateTableSQL = `CREATE TABLE IF NOT EXISTS %[1]s (
        ts             TIMESTAMPTZ      PRIMARY KEY,
        index_value    DOUBLE PRECISION,
        fx_rate        DOUBLE PRECISION NOT NULL,
        exchange_price DOUBLE PRECISION NOT NULL,
        created_at     TIMESTAMPTZ      NOT NULL DEFAULT now()
    );`

	pgInsertSampleSQL = `INSERT INTO %[1]s (
        ts,
        index_value,
        fx_rate,
        exchange_price
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (ts) DO NOTHING;`

	pgListSamplesSQL = `SELECT
        ts,
        index_value,
        fx_rate,
        exchange_price
    FROM %[1]s
    WHERE $1::timestamptz IS NULL OR ts >= $1
    ORDER BY ts;`

	pgListRecentSamplesSQL = `SELECT
        ts,
        index_value,
        fx_rate,
        exchange_price
    FROM %[1]s
    ORDER BY ts DESC
    LIMIT $1;`

	pgCountSamplesSQL = `SELECT COUNT(*) FROM %[1]s;`
)

// PostgresStore persists samples through a pgx pool.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore wires a pgx pool into a store writing to table.
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	if table == "" {
		table = defaultTable
	}
	return &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

func (s *PostgresStore) stmt(tmpl string) string {
	return fmt.Sprintf(tmpl, s.table)
}

// EnsureSchema creates the samples table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return failure.Storage("ensure schema", err)
	}
	if _, err := pool.Exec(ctx, s.stmt(pgCreateTableSQL)); err != nil {
		return failure.Storage("ensure schema", err)
	}
	return nil
}

// InsertSample writes sample unless a row with the same timestamp exists.
func (s *PostgresStore) InsertSample(ctx context.Context, sample Sample) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, failure.Storage("insert sample", err)
	}

	var index interface{}
	if sample.HasIndex() {
		index = sample.IndexValue
	}

	tag, err := pool.Exec(ctx, s.stmt(pgInsertSampleSQL),
		NormalizeTimestamp(sample.Timestamp),
		index,
		sample.FXRate,
		sample.ExchangePrice,
	)
	if err != nil {
		return false, failure.Storage("insert sample", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSamples lists samples at or after since (all when nil) in ascending order.
func (s *PostgresStore) ListSamples(ctx context.Context, since *time.Time) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, failure.Storage("list samples", err)
	}

	var cutoff *time.Time
	if since != nil {
		c := NormalizeCutoff(*since)
		cutoff = &c
	}

	rows, err := pool.Query(ctx, s.stmt(pgListSamplesSQL), cutoff)
	if err != nil {
		return nil, failure.Storage("list samples", err)
	}
	return collectSamples(rows, 0)
}

// ListRecentSamples lists the most recent samples ordered by descending timestamp.
func (s *PostgresStore) ListRecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, failure.Storage("list recent samples", err)
	}

	rows, err := pool.Query(ctx, s.stmt(pgListRecentSamplesSQL), limit)
	if err != nil {
		return nil, failure.Storage("list recent samples", err)
	}
	return collectSamples(rows, limit)
}

// CountSamples counts stored samples.
func (s *PostgresStore) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, failure.Storage("count samples", err)
	}
	var count int64
	if err := pool.QueryRow(ctx, s.stmt(pgCountSamplesSQL)).Scan(&count); err != nil {
		return 0, failure.Storage("count samples", err)
	}
	return count, nil
}

func collectSamples(rows pgx.Rows, capacity int) ([]Sample, error) {
	defer rows.Close()

	samples := make([]Sample, 0, capacity)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, failure.Storage("scan sample", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("scan sample", err)
	}
	return samples, nil
}

func scanSample(rows pgx.Rows) (Sample, error) {
	var (
		ts       time.Time
		index    sql.NullFloat64
		fx       float64
		exchange float64
	)
	if err := rows.Scan(&ts, &index, &fx, &exchange); err != nil {
		return Sample{}, err
	}

	sample := Sample{
		Timestamp:     ts.UTC(),
		IndexValue:    math.NaN(),
		FXRate:        fx,
		ExchangePrice: exchange,
	}
	if index.Valid {
		sample.IndexValue = index.Float64
	}
	return sample, nil
}

var _ SampleStore = (*PostgresStore)(nil)
