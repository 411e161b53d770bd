package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"marketwatch/internal/config"
	"marketwatch/internal/failure"
)

const mysqlCreateTableSQL = "CREATE TABLE IF NOT EXISTS `%s` (" +
	"`ts` DATETIME(6) NOT NULL," +
	"`index_value` DOUBLE NULL," +
	"`fx_rate` DOUBLE NOT NULL," +
	"`exchange_price` DOUBLE NOT NULL," +
	"`created_at` TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)," +
	"PRIMARY KEY (`ts`)" +
	") ENGINE=InnoDB"

// mysqlRow is the gorm mapping of one samples row.
type mysqlRow struct {
	Timestamp     time.Time       `gorm:"column:ts;primaryKey"`
	IndexValue    sql.NullFloat64 `gorm:"column:index_value"`
	FXRate        float64         `gorm:"column:fx_rate"`
	ExchangePrice float64         `gorm:"column:exchange_price"`
}

func (r mysqlRow) sample() Sample {
	s := Sample{
		Timestamp:     r.Timestamp.UTC(),
		IndexValue:    math.NaN(),
		FXRate:        r.FXRate,
		ExchangePrice: r.ExchangePrice,
	}
	if r.IndexValue.Valid {
		s.IndexValue = r.IndexValue.Float64
	}
	return s
}

// mysqlDSN parses raw and forces parseTime so ts scans into time.Time.
func mysqlDSN(raw string) (string, error) {
	parsed, err := gomysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	parsed.ParseTime = true
	return parsed.FormatDSN(), nil
}

// MySQLStore persists samples through gorm on MySQL.
type MySQLStore struct {
	db    *gorm.DB
	table string
}

// OpenMySQL dials MySQL with cfg. parseTime is always enabled.
func OpenMySQL(cfg config.DatabaseConfig, logger zerolog.Logger) (*MySQLStore, error) {
	dsn, err := mysqlDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewMySQLStore(db, cfg.Table), nil
}

// NewMySQLStore wraps an existing gorm handle.
func NewMySQLStore(db *gorm.DB, table string) *MySQLStore {
	if table == "" {
		table = defaultTable
	}
	return &MySQLStore{db: db, table: table}
}

func gormConfig(logger zerolog.Logger) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(gormWriter{logger: logger.With().Str("component", "gorm").Logger()}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}
}

// gormWriter routes gorm's printf-style logs into zerolog.
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (s *MySQLStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db.WithContext(ctx), nil
}

// EnsureSchema creates the samples table when it is missing.
func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return failure.Storage("ensure schema", err)
	}
	if err := db.Exec(fmt.Sprintf(mysqlCreateTableSQL, s.table)).Error; err != nil {
		return failure.Storage("ensure schema", err)
	}
	return nil
}

// InsertSample writes sample unless a row with the same timestamp exists.
func (s *MySQLStore) InsertSample(ctx context.Context, sample Sample) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, failure.Storage("insert sample", err)
	}

	row := mysqlRow{
		Timestamp:     NormalizeTimestamp(sample.Timestamp),
		IndexValue:    sql.NullFloat64{Float64: sample.IndexValue, Valid: sample.HasIndex()},
		FXRate:        sample.FXRate,
		ExchangePrice: sample.ExchangePrice,
	}

	res := db.Table(s.table).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, failure.Storage("insert sample", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListSamples lists samples at or after since (all when nil) in ascending order.
func (s *MySQLStore) ListSamples(ctx context.Context, since *time.Time) ([]Sample, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, failure.Storage("list samples", err)
	}

	q := db.Table(s.table)
	if since != nil {
		q = q.Where("ts >= ?", NormalizeCutoff(*since))
	}

	var rows []mysqlRow
	if err := q.Order("ts ASC").Find(&rows).Error; err != nil {
		return nil, failure.Storage("list samples", err)
	}
	return toSamples(rows), nil
}

// ListRecentSamples lists the most recent samples ordered by descending timestamp.
func (s *MySQLStore) ListRecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, failure.Storage("list recent samples", err)
	}

	var rows []mysqlRow
	if err := db.Table(s.table).Order("ts DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, failure.Storage("list recent samples", err)
	}
	return toSamples(rows), nil
}

// CountSamples counts stored samples.
func (s *MySQLStore) CountSamples(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, failure.Storage("count samples", err)
	}
	var count int64
	if err := db.Table(s.table).Count(&count).Error; err != nil {
		return 0, failure.Storage("count samples", err)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func toSamples(rows []mysqlRow) []Sample {
	samples := make([]Sample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, r.sample())
	}
	return samples
}

var _ SampleStore = (*MySQLStore)(nil)
