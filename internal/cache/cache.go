// Package cache provides a best-effort local snapshot cache backed by a
// SQLite file. Failures here must never fail a distribution run; callers log
// and move on.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"pulsewire/internal/reading"
)

// ErrMiss is returned when no fresh entry exists for a key.
var ErrMiss = errors.New("cache: miss")

const schema = `CREATE TABLE IF NOT EXISTS snapshots (
    cache_key  TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);`

const (
	putSnapshotSQL    = `INSERT INTO snapshots (cache_key, payload, expires_at) VALUES (?, ?, ?)
    ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at;`
	getSnapshotSQL    = `SELECT payload, expires_at FROM snapshots WHERE cache_key = ?;`
	deleteSnapshotSQL = `DELETE FROM snapshots WHERE cache_key = ?;`
)

// SnapshotCache stores reduced snapshots keyed by job cache key.
type SnapshotCache struct {
	db *sql.DB
}

// Open creates (or opens) the cache file and ensures the schema exists.
func Open(path string) (*SnapshotCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SnapshotCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *SnapshotCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores the snapshot rows under key with the given ttl.
func (c *SnapshotCache) Put(ctx context.Context, key string, snap *reading.Snapshot, ttl time.Duration) error {
	if c == nil || c.db == nil {
		return errors.New("cache: not open")
	}

	payload, err := json.Marshal(snap.Readings())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	expires := time.Now().Add(ttl).Unix()
	if _, err := c.db.ExecContext(ctx, putSnapshotSQL, key, string(payload), expires); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// Get returns the cached snapshot for key, or ErrMiss when absent or
// expired. Expired rows are lazily deleted.
func (c *SnapshotCache) Get(ctx context.Context, key string) (*reading.Snapshot, error) {
	if c == nil || c.db == nil {
		return nil, errors.New("cache: not open")
	}

	var (
		payload string
		expires int64
	)
	err := c.db.QueryRowContext(ctx, getSnapshotSQL, key).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	if time.Now().Unix() >= expires {
		_, _ = c.db.ExecContext(ctx, deleteSnapshotSQL, key)
		return nil, ErrMiss
	}

	var rows []reading.Reading
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return reading.Reduce(rows), nil
}
