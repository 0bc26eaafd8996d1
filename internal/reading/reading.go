// Package reading holds the domain model for tracked series readings and the
// pure reductions the distribution jobs are built from.
package reading

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reading is one observed value for a tracked series on a given date.
// Rows are immutable once written; (SeriesKey, AsOfDate) is the natural key.
type Reading struct {
	SeriesKey    string              `json:"series_key"`
	DisplayName  string              `json:"display_name"`
	RawValue     string              `json:"raw_value"`
	NumericValue decimal.NullDecimal `json:"numeric_value"`
	Status       string              `json:"status"`
	Signal       string              `json:"signal"`
	SignalMarker string              `json:"signal_marker"`
	AsOfDate     time.Time           `json:"as_of_date"`
	CreatedAt    time.Time           `json:"created_at,omitempty"`
}

// Snapshot maps each series key to exactly one Reading while preserving the
// order in which keys were first seen. It is derived data, recomputed on
// every job run, and never persisted as its own entity.
type Snapshot struct {
	keys    []string
	entries map[string]Reading
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{entries: make(map[string]Reading)}
}

// Len reports the number of distinct series keys held.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Get returns the reading for a series key, if present.
func (s *Snapshot) Get(key string) (Reading, bool) {
	r, ok := s.entries[key]
	return r, ok
}

// Keys returns the series keys in first-seen order.
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Readings returns the snapshot rows in first-seen order.
func (s *Snapshot) Readings() []Reading {
	out := make([]Reading, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, s.entries[key])
	}
	return out
}

func (s *Snapshot) insert(r Reading) bool {
	if _, exists := s.entries[r.SeriesKey]; exists {
		return false
	}
	s.entries[r.SeriesKey] = r
	s.keys = append(s.keys, r.SeriesKey)
	return true
}

// Reduce collapses an ordered sequence of readings into one row per series
// key. The first occurrence of a key wins, so callers must supply readings
// in "most recent as_of_date first" order; reversing the input changes which
// row is considered latest. Empty input yields an empty snapshot.
func Reduce(readings []Reading) *Snapshot {
	snap := NewSnapshot()
	for _, r := range readings {
		snap.insert(r)
	}
	return snap
}
