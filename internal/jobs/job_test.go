package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pulsewire/internal/config"
	"pulsewire/internal/deliver"
	"pulsewire/internal/generate"
	"pulsewire/internal/reading"
	"pulsewire/internal/strategy"
)

// 2024-06-02 is a Sunday.
var fixedNow = time.Date(2024, 6, 2, 13, 30, 0, 0, time.UTC)

type fakeStore struct {
	readings []reading.Reading
	err      error
	calls    int
}

func (f *fakeStore) ListLatestReadings(_ context.Context, _ []string, _ int) ([]reading.Reading, error) {
	f.calls++
	return f.readings, f.err
}

type fakeTrends struct {
	history map[string][]decimal.Decimal
	err     error
}

func (f *fakeTrends) ListNumericHistory(_ context.Context, key string, _ int) ([]decimal.Decimal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history[key], nil
}

type fakeGenerator struct {
	byVariant map[strategy.Variant]string
	err       error
	requests  []generate.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req generate.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.byVariant[req.Variant], nil
}

type fakeDeliverer struct {
	receipt   deliver.Receipt
	err       error
	delivered []string
}

func (f *fakeDeliverer) Deliver(_ context.Context, _, text string) (deliver.Receipt, error) {
	if f.err != nil {
		return deliver.Receipt{}, f.err
	}
	f.delivered = append(f.delivered, text)
	return f.receipt, nil
}

type fakeCache struct {
	err  error
	puts []string
}

func (f *fakeCache) Put(_ context.Context, key string, _ *reading.Snapshot, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.puts = append(f.puts, key)
	return nil
}

type fakeLocker struct {
	acquired bool
	err      error
	unlocked bool
}

func (f *fakeLocker) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if !f.acquired {
		return nil, false, nil
	}
	return func() { f.unlocked = true }, true, nil
}

func nullInt(v int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(v), Valid: true}
}

func sampleReadings() []reading.Reading {
	return []reading.Reading{
		{SeriesKey: "AAA", NumericValue: nullInt(10), AsOfDate: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
		{SeriesKey: "AAA", NumericValue: nullInt(9), AsOfDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{SeriesKey: "BBB", NumericValue: nullInt(5), AsOfDate: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func newTestJob(cfg config.JobConfig, deps Dependencies) *Job {
	if cfg.Name == "" {
		cfg.Name = "daily-sms"
	}
	if len(cfg.SeriesKeys) == 0 {
		cfg.SeriesKeys = []string{"AAA", "BBB"}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return fixedNow }
	}
	return New(cfg, "+15552223333", time.UTC, deps, zerolog.Nop())
}

func TestRunReducesAndDelivers(t *testing.T) {
	gen := &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "daily pulse"}}
	del := &fakeDeliverer{receipt: deliver.Receipt{ProviderRef: "msg_1"}}

	job := newTestJob(config.JobConfig{}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: gen,
		Deliverer: del,
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeDelivered, report.Outcome)
	require.True(t, report.ContentGenerated)
	require.True(t, report.Delivered)
	require.Equal(t, "msg_1", report.DeliveryRef)
	require.Equal(t, []string{"daily pulse"}, del.delivered)
	require.NotEmpty(t, report.RunID)

	// The generator saw the reduced snapshot: one row per key, first seen wins.
	require.Len(t, gen.requests, 1)
	rows := gen.requests[0].Rows
	require.Len(t, rows, 2)
	require.Equal(t, "AAA", rows[0].SeriesKey)
	require.True(t, rows[0].NumericValue.Decimal.Equal(decimal.NewFromInt(10)))
	require.Equal(t, "BBB", rows[1].SeriesKey)
	require.True(t, rows[1].NumericValue.Decimal.Equal(decimal.NewFromInt(5)))
}

func TestRunEmptyReadingsIsNoData(t *testing.T) {
	gen := &fakeGenerator{}
	job := newTestJob(config.JobConfig{}, Dependencies{
		Store:     &fakeStore{},
		Generator: gen,
		Deliverer: &fakeDeliverer{},
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeNoData, report.Outcome)
	require.False(t, report.ContentGenerated)
	require.False(t, report.Delivered)
	require.Contains(t, report.Message, "no readings")
	require.Empty(t, gen.requests, "generator must not run without data")
}

func TestRunWithoutStoreIsNoData(t *testing.T) {
	gen := &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "daily pulse"}}
	del := &fakeDeliverer{}

	// buildRegistry wires jobs without a Store when no DSN is configured;
	// triggering them must still complete with a report.
	job := newTestJob(config.JobConfig{}, Dependencies{
		Generator: gen,
		Deliverer: del,
	})

	var report RunReport
	require.NotPanics(t, func() { report = job.Run(context.Background()) })

	require.Equal(t, OutcomeNoData, report.Outcome)
	require.False(t, report.ContentGenerated)
	require.False(t, report.Delivered)
	require.Contains(t, report.Message, "no reading store configured")
	require.Empty(t, gen.requests)
	require.Empty(t, del.delivered)
}

func TestRunFallsBackToDailyWhenSpecialIsEmpty(t *testing.T) {
	gen := &fakeGenerator{byVariant: map[strategy.Variant]string{
		strategy.VariantSpecial: "",
		strategy.VariantDaily:   "hello",
	}}
	del := &fakeDeliverer{receipt: deliver.Receipt{ProviderRef: "msg_2"}}

	job := newTestJob(config.JobConfig{SpecialWeekday: "Sunday"}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: gen,
		Deliverer: del,
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeDelivered, report.Outcome)
	require.True(t, report.Delivered)
	require.Equal(t, []string{"hello"}, del.delivered)
	require.Len(t, gen.requests, 2)
	require.Equal(t, strategy.VariantSpecial, gen.requests[0].Variant)
	require.Equal(t, strategy.VariantDaily, gen.requests[1].Variant)
}

func TestRunDoublyEmptyContentIsSuccess(t *testing.T) {
	gen := &fakeGenerator{byVariant: map[strategy.Variant]string{}}
	del := &fakeDeliverer{}

	job := newTestJob(config.JobConfig{SpecialWeekday: "Sunday"}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: gen,
		Deliverer: del,
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeNoContent, report.Outcome)
	require.False(t, report.ContentGenerated)
	require.False(t, report.Delivered)
	require.Empty(t, report.Error)
	require.Empty(t, del.delivered, "nothing must be delivered without content")
}

func TestRunDeliveryFailureIsReportedNotRetried(t *testing.T) {
	del := &fakeDeliverer{err: errors.New("provider down")}
	job := newTestJob(config.JobConfig{}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}},
		Deliverer: del,
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeDeliveryFailed, report.Outcome)
	require.True(t, report.ContentGenerated)
	require.False(t, report.Delivered)
	require.Equal(t, "provider down", report.Error)
}

func TestRunCacheFailureDoesNotFailRun(t *testing.T) {
	cache := &fakeCache{err: errors.New("disk full")}
	job := newTestJob(config.JobConfig{}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}},
		Deliverer: &fakeDeliverer{receipt: deliver.Receipt{ProviderRef: "msg_3"}},
		Cache:     cache,
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeDelivered, report.Outcome)
	require.True(t, report.Delivered)
}

func TestRunSkipsWhenLockHeldElsewhere(t *testing.T) {
	store := &fakeStore{readings: sampleReadings()}
	job := newTestJob(config.JobConfig{LockKey: 42}, Dependencies{
		Store:     store,
		Generator: &fakeGenerator{},
		Deliverer: &fakeDeliverer{},
		Locker:    &fakeLocker{acquired: false},
	})

	report := job.Run(context.Background())

	require.Equal(t, OutcomeSkipped, report.Outcome)
	require.Zero(t, store.calls, "skipped run must not touch the store")
}

func TestRunReleasesLockAfterRun(t *testing.T) {
	locker := &fakeLocker{acquired: true}
	job := newTestJob(config.JobConfig{LockKey: 42}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}},
		Deliverer: &fakeDeliverer{},
		Locker:    locker,
	})

	job.Run(context.Background())
	require.True(t, locker.unlocked)
}

func TestRunLockErrorProceedsUnlocked(t *testing.T) {
	job := newTestJob(config.JobConfig{LockKey: 42}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}},
		Deliverer: &fakeDeliverer{receipt: deliver.Receipt{ProviderRef: "msg_4"}},
		Locker:    &fakeLocker{err: errors.New("lock table gone")},
	})

	report := job.Run(context.Background())
	require.Equal(t, OutcomeDelivered, report.Outcome)
}

func TestRunStoreErrorIsError(t *testing.T) {
	job := newTestJob(config.JobConfig{}, Dependencies{
		Store:     &fakeStore{err: errors.New("connection refused")},
		Generator: &fakeGenerator{},
		Deliverer: &fakeDeliverer{},
	})

	report := job.Run(context.Background())
	require.Equal(t, OutcomeError, report.Outcome)
	require.Contains(t, report.Error, "connection refused")
}

func TestRunTrendHistoryReachesGenerator(t *testing.T) {
	gen := &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}}
	job := newTestJob(config.JobConfig{TrendDepth: 3}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Trends:    &fakeTrends{history: map[string][]decimal.Decimal{"AAA": {decimal.NewFromInt(9), decimal.NewFromInt(8)}}},
		Generator: gen,
		Deliverer: &fakeDeliverer{},
	})

	job.Run(context.Background())

	require.Len(t, gen.requests, 1)
	rows := gen.requests[0].Rows
	require.Len(t, rows[0].History, 2)
	require.Equal(t, reading.DirectionUp, rows[0].Direction())
	require.Empty(t, rows[1].History)
}

func TestRunFailedTrendLookupDoesNotFailRun(t *testing.T) {
	job := newTestJob(config.JobConfig{TrendDepth: 3}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Trends:    &fakeTrends{err: errors.New("history unavailable")},
		Generator: &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}},
		Deliverer: &fakeDeliverer{receipt: deliver.Receipt{ProviderRef: "msg_5"}},
	})

	report := job.Run(context.Background())
	require.Equal(t, OutcomeDelivered, report.Outcome)
}

func TestRunTopicRotationIsDeterministic(t *testing.T) {
	gen := &fakeGenerator{byVariant: map[strategy.Variant]string{strategy.VariantDaily: "text"}}
	job := newTestJob(config.JobConfig{Topics: []string{"rates", "equities", "credit"}}, Dependencies{
		Store:     &fakeStore{readings: sampleReadings()},
		Generator: gen,
		Deliverer: &fakeDeliverer{},
	})

	job.Run(context.Background())

	// Day 2 of the month, three topics: 2 % 3 = 2.
	require.Equal(t, "credit", gen.requests[0].Topic)
}

func TestRegistryAddGet(t *testing.T) {
	reg := NewRegistry()
	job := newTestJob(config.JobConfig{Name: "morning"}, Dependencies{
		Store: &fakeStore{}, Generator: &fakeGenerator{}, Deliverer: &fakeDeliverer{},
	})
	require.NoError(t, reg.Add(job))
	require.Error(t, reg.Add(job), "duplicate registration must fail")

	got, ok := reg.Get("morning")
	require.True(t, ok)
	require.Equal(t, "morning", got.Name())
	require.Equal(t, []string{"morning"}, reg.Names())
}
