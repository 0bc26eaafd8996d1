package reading

import (
	"context"

	"github.com/shopspring/decimal"
)

// Trend directions reported by TrendReading.Direction.
const (
	DirectionUp      = "up"
	DirectionDown    = "down"
	DirectionFlat    = "flat"
	DirectionUnknown = "unknown"
)

// TrendReading is a snapshot row plus a short sequence of prior numeric
// values, most recent first. History may be empty when no usable backsight
// exists for the series.
type TrendReading struct {
	Reading
	History []decimal.Decimal `json:"history"`
}

// Direction classifies the change of the current value against the most
// recent prior value.
func (t TrendReading) Direction() string {
	if !t.NumericValue.Valid || len(t.History) == 0 {
		return DirectionUnknown
	}
	switch t.NumericValue.Decimal.Cmp(t.History[0]) {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// TrendLookup resolves the prior numeric values for one series key, most
// recent first.
type TrendLookup func(ctx context.Context, seriesKey string) ([]decimal.Decimal, error)

// MergeTrends attaches trend history to every snapshot entry, preserving the
// snapshot's first-seen order. A lookup error or missing history for a key
// attaches an empty sequence; the merge itself never fails and never drops
// an entry.
func MergeTrends(ctx context.Context, snap *Snapshot, lookup TrendLookup) []TrendReading {
	out := make([]TrendReading, 0, snap.Len())
	for _, r := range snap.Readings() {
		tr := TrendReading{Reading: r}
		if lookup != nil {
			if history, err := lookup(ctx, r.SeriesKey); err == nil {
				tr.History = history
			}
		}
		out = append(out, tr)
	}
	return out
}
