package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pulsewire/internal/reading"
)

// IngestOptions configure the ingest command.
type IngestOptions struct {
	CSVPath string
	DryRun  bool
}

// Ingest loads readings from a CSV file into the store, one upsert per row.
// Expected header: series_key,as_of_date,display_name,raw_value,numeric_value,signal,status.
// Rows replay safely: the upsert keys on (series_key, as_of_date).
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot ingest")
	}
	if closeStore != nil {
		defer closeStore()
	}

	file, err := os.Open(opts.CSVPath)
	if err != nil {
		return err
	}
	defer file.Close()

	readerCSV := csv.NewReader(file)
	header, err := readerCSV.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"series_key", "as_of_date", "raw_value"} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("csv missing required column %q", required)
		}
	}

	var ingested, skipped int
	for line := 2; ; line++ {
		record, err := readerCSV.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		r, err := parseReadingRecord(record, columns)
		if err != nil {
			a.Logger.Warn().Err(err).Int("line", line).Msg("skipping malformed row")
			skipped++
			continue
		}

		if opts.DryRun {
			ingested++
			continue
		}
		if err := store.UpsertReading(ctx, r); err != nil {
			return fmt.Errorf("line %d: upsert %s/%s: %w", line, r.SeriesKey, r.AsOfDate.Format("2006-01-02"), err)
		}
		ingested++
	}

	a.Logger.Info().
		Int("ingested", ingested).
		Int("skipped", skipped).
		Bool("dry_run", opts.DryRun).
		Msg("ingest finished")
	return nil
}

func parseReadingRecord(record []string, columns map[string]int) (reading.Reading, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	key := field("series_key")
	if key == "" {
		return reading.Reading{}, errors.New("empty series_key")
	}

	asOf, err := time.Parse("2006-01-02", field("as_of_date"))
	if err != nil {
		return reading.Reading{}, fmt.Errorf("as_of_date: %w", err)
	}

	r := reading.Reading{
		SeriesKey:    key,
		DisplayName:  field("display_name"),
		RawValue:     field("raw_value"),
		Signal:       field("signal"),
		SignalMarker: field("signal_marker"),
		Status:       field("status"),
		AsOfDate:     asOf,
	}

	if raw := field("numeric_value"); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return reading.Reading{}, fmt.Errorf("numeric_value: %w", err)
		}
		r.NumericValue = decimal.NullDecimal{Decimal: value, Valid: true}
	}

	return r, nil
}
