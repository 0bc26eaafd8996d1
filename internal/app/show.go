package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints the most recent stored readings for the given series keys,
// defaulting to every key referenced by a configured job.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show readings")
	}
	if closeStore != nil {
		defer closeStore()
	}

	keys := opts.SeriesKeys
	if len(keys) == 0 {
		keys = a.configuredSeriesKeys()
	}
	if len(keys) == 0 {
		return errors.New("no series keys given and no jobs configured")
	}

	readings, err := store.ListLatestReadings(ctx, keys, opts.Limit)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		fmt.Fprintln(os.Stdout, "no readings found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Series\tName\tValue\tNumeric\tSignal\tStatus\tAs Of\tStored (UTC)")

	for _, r := range readings {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.SeriesKey,
			r.DisplayName,
			sanitizeInline(r.RawValue),
			formatNullDecimal(r.NumericValue),
			r.Signal,
			r.Status,
			r.AsOfDate.Format("2006-01-02"),
			r.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

// configuredSeriesKeys returns the union of every job's series keys, sorted.
func (a *App) configuredSeriesKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, job := range a.Config.Jobs {
		for _, key := range job.SeriesKeys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
