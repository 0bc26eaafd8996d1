package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pulsewire/internal/reading"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// defaultFetchLimit caps unbounded latest-reading queries.
const defaultFetchLimit = 500

const (
	upsertReadingSQL = `INSERT INTO readings (
        series_key,
        display_name,
        raw_value,
        numeric_value,
        status,
        signal,
        signal_marker,
        as_of_date
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (series_key, as_of_date) DO UPDATE
    SET
        display_name  = EXCLUDED.display_name,
        raw_value     = EXCLUDED.raw_value,
        numeric_value = EXCLUDED.numeric_value,
        status        = EXCLUDED.status,
        signal        = EXCLUDED.signal,
        signal_marker = EXCLUDED.signal_marker;`

	listLatestReadingsSQL = `SELECT
        series_key,
        display_name,
        raw_value,
        numeric_value,
        status,
        signal,
        signal_marker,
        as_of_date,
        created_at
    FROM readings
    WHERE series_key = ANY($1)
    ORDER BY as_of_date DESC, series_key
    LIMIT $2;`

	listNumericHistorySQL = `SELECT numeric_value
    FROM readings
    WHERE series_key = $1
      AND numeric_value IS NOT NULL
    ORDER BY as_of_date DESC
    OFFSET 1
    LIMIT $2;`

	listSeriesBetweenSQL = `SELECT
        series_key,
        display_name,
        raw_value,
        numeric_value,
        status,
        signal,
        signal_marker,
        as_of_date,
        created_at
    FROM readings
    WHERE series_key = $1
      AND as_of_date >= $2
      AND as_of_date < $3
    ORDER BY as_of_date;`

	countReadingsSQL = `SELECT COUNT(*) FROM readings;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ReadingStore defines the reading lookup jobs depend on.
type ReadingStore interface {
	ListLatestReadings(ctx context.Context, keys []string, limit int) ([]reading.Reading, error)
}

// TrendStore resolves short numeric histories for trend merging.
type TrendStore interface {
	ListNumericHistory(ctx context.Context, seriesKey string, depth int) ([]decimal.Decimal, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the readings table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertReading persists or updates one reading keyed by (series_key, as_of_date).
func (s *Store) UpsertReading(ctx context.Context, r reading.Reading) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var numeric interface{}
	if r.NumericValue.Valid {
		numeric = r.NumericValue.Decimal.String()
	}

	_, execErr := pool.Exec(ctx, upsertReadingSQL,
		r.SeriesKey,
		r.DisplayName,
		r.RawValue,
		numeric,
		r.Status,
		r.Signal,
		r.SignalMarker,
		r.AsOfDate,
	)
	if execErr != nil {
		return fmt.Errorf("upsert reading: %w", execErr)
	}
	return nil
}

// ListLatestReadings returns readings for the given keys ordered most recent
// as_of_date first — the ordering the snapshot reducer depends on.
func (s *Store) ListLatestReadings(ctx context.Context, keys []string, limit int) ([]reading.Reading, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	rows, queryErr := pool.Query(ctx, listLatestReadingsSQL, keys, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list latest readings: %w", queryErr)
	}
	defer rows.Close()

	readings := make([]reading.Reading, 0, len(keys))
	for rows.Next() {
		r, scanErr := scanReading(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		readings = append(readings, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return readings, nil
}

// ListNumericHistory returns up to depth prior numeric values for a series,
// most recent first, excluding the latest reading itself.
func (s *Store) ListNumericHistory(ctx context.Context, seriesKey string, depth int) ([]decimal.Decimal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		return nil, nil
	}

	rows, queryErr := pool.Query(ctx, listNumericHistorySQL, seriesKey, depth)
	if queryErr != nil {
		return nil, fmt.Errorf("list numeric history: %w", queryErr)
	}
	defer rows.Close()

	values := make([]decimal.Decimal, 0, depth)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		value, convErr := decimal.NewFromString(raw)
		if convErr != nil {
			return nil, fmt.Errorf("parse numeric value: %w", convErr)
		}
		values = append(values, value)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return values, nil
}

// ListSeriesBetween lists one series' readings within a date window,
// oldest first, for exports.
func (s *Store) ListSeriesBetween(ctx context.Context, seriesKey string, from, to time.Time) ([]reading.Reading, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSeriesBetweenSQL, seriesKey, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list series between: %w", queryErr)
	}
	defer rows.Close()

	readings := make([]reading.Reading, 0)
	for rows.Next() {
		r, scanErr := scanReading(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		readings = append(readings, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return readings, nil
}

// CountReadings counts stored readings.
func (s *Store) CountReadings(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countReadingsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count readings: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func scanReading(rows pgx.Rows) (reading.Reading, error) {
	var (
		r       reading.Reading
		numeric sql.NullString
	)

	if err := rows.Scan(
		&r.SeriesKey,
		&r.DisplayName,
		&r.RawValue,
		&numeric,
		&r.Status,
		&r.Signal,
		&r.SignalMarker,
		&r.AsOfDate,
		&r.CreatedAt,
	); err != nil {
		return reading.Reading{}, err
	}

	if numeric.Valid {
		value, err := decimal.NewFromString(numeric.String)
		if err != nil {
			return reading.Reading{}, fmt.Errorf("parse numeric value: %w", err)
		}
		r.NumericValue = decimal.NullDecimal{Decimal: value, Valid: true}
	}

	return r, nil
}
