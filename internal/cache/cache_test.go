package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pulsewire/internal/reading"
)

func openTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleSnapshot() *reading.Snapshot {
	return reading.Reduce([]reading.Reading{
		{
			SeriesKey:    "AAA",
			DisplayName:  "Series A",
			NumericValue: decimal.NullDecimal{Decimal: decimal.NewFromInt(10), Valid: true},
			AsOfDate:     time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			SeriesKey: "BBB",
			AsOfDate:  time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		},
	})
}

func TestPutGetRoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "daily", sampleSnapshot(), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := c.Get(ctx, "daily")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", got.Len())
	}
	aaa, ok := got.Get("AAA")
	if !ok || !aaa.NumericValue.Valid || !aaa.NumericValue.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("AAA round-trip mismatch: %+v", aaa)
	}
	keys := got.Keys()
	if keys[0] != "AAA" || keys[1] != "BBB" {
		t.Fatal("cache should preserve snapshot order")
	}
}

func TestGetMissOnUnknownKey(t *testing.T) {
	c := openTestCache(t)
	if _, err := c.Get(context.Background(), "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestGetMissOnExpiredEntry(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "daily", sampleSnapshot(), -time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := c.Get(ctx, "daily"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry should miss, got %v", err)
	}
}

func TestPutOverwrites(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "daily", sampleSnapshot(), time.Minute); err != nil {
		t.Fatalf("first put: %v", err)
	}
	replacement := reading.Reduce([]reading.Reading{{SeriesKey: "CCC", AsOfDate: time.Now()}})
	if err := c.Put(ctx, "daily", replacement, time.Minute); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := c.Get(ctx, "daily")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected replacement snapshot, got %d entries", got.Len())
	}
	if _, ok := got.Get("CCC"); !ok {
		t.Fatal("replacement entry missing")
	}
}
