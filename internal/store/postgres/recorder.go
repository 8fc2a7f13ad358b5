// Package postgres mirrors validated readings into a Postgres table.
//
// The CSV files remain the source of truth; the mirror exists so readings
// can be queried without re-parsing flat files. Mirror failures are the
// caller's to log and ignore.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vietair/aqi-crawler/internal/validate"
)

const insertReadingSQL = `
INSERT INTO aqi_readings (recorded_at, city_slug, city, aqi, weather_icon, wind_speed, humidity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT DO NOTHING`

// DB is the pool subset the recorder needs. *pgxpool.Pool satisfies it,
// and so does a pgxmock pool in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Recorder inserts readings into the aqi_readings table.
type Recorder struct {
	db     DB
	logger *zap.Logger
}

// New connects a pool to dsn and verifies the connection, failing fast on
// bad configuration.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Recorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Recorder{db: pool, logger: logger}, nil
}

// NewWithDB wraps an existing connection; the seam pgxmock tests use.
func NewWithDB(db DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record inserts one reading. The timestamp is parsed back to time.Time
// so the column can be timestamptz instead of text.
func (r *Recorder) Record(ctx context.Context, slug string, reading validate.Reading) error {
	recordedAt, err := time.Parse(time.RFC3339, reading.Timestamp)
	if err != nil {
		return fmt.Errorf("parse reading timestamp %q: %w", reading.Timestamp, err)
	}
	aqi, err := strconv.Atoi(reading.AQI)
	if err != nil {
		return fmt.Errorf("parse reading aqi %q: %w", reading.AQI, err)
	}

	tag, err := r.db.Exec(ctx, insertReadingSQL,
		recordedAt, slug, reading.City, aqi,
		reading.WeatherIcon, reading.WindSpeed, reading.Humidity,
	)
	if err != nil {
		return fmt.Errorf("insert reading for %s: %w", slug, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("duplicate reading skipped", zap.String("city", slug))
	}
	return nil
}

// Close releases the pool.
func (r *Recorder) Close() {
	r.db.Close()
}
