// Package jobs sequences one scheduled distribution run: fetch ordered
// readings, reduce them to a latest-value snapshot, merge trend history, ask
// the content service for text, and push it through the delivery channel.
// Each invocation is a single short-lived unit of work driven by an external
// clock; there is no retry-within-run state.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pulsewire/internal/config"
	"pulsewire/internal/deliver"
	"pulsewire/internal/generate"
	"pulsewire/internal/reading"
	"pulsewire/internal/storage"
	"pulsewire/internal/strategy"
)

// SnapshotCache is the best-effort cache surface jobs write through. Put
// failures are logged and swallowed, never surfaced as run failures.
type SnapshotCache interface {
	Put(ctx context.Context, key string, snap *reading.Snapshot, ttl time.Duration) error
}

// Dependencies bundle the collaborators a job needs. Store, Generator, and
// Deliverer are required; the rest degrade gracefully when nil.
type Dependencies struct {
	Store     storage.ReadingStore
	Trends    storage.TrendStore
	Generator generate.Generator
	Deliverer deliver.Deliverer
	Cache     SnapshotCache
	Locker    storage.AdvisoryLocker
	Now       func() time.Time
}

// Job is one parametrized scheduled distribution: a per-schedule config
// object plus injected collaborators, replacing a copy-pasted entry point.
type Job struct {
	cfg         config.JobConfig
	destination string
	location    *time.Location
	deps        Dependencies
	logger      zerolog.Logger
}

// New constructs a job from its configuration.
func New(cfg config.JobConfig, destination string, location *time.Location, deps Dependencies, logger zerolog.Logger) *Job {
	if location == nil {
		location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Job{
		cfg:         cfg,
		destination: destination,
		location:    location,
		deps:        deps,
		logger:      logger.With().Str("component", "job").Str("job", cfg.Name).Logger(),
	}
}

// Name returns the job's configured name.
func (j *Job) Name() string {
	return j.cfg.Name
}

// Schedule returns the job's cron spec for the optional local clock.
func (j *Job) Schedule() string {
	return j.cfg.Schedule
}

// Run executes one invocation end to end and always returns a report, even
// for unexpected adapter failures. Authorization happens before Run in the
// trigger layer.
func (j *Job) Run(ctx context.Context) RunReport {
	report := newRunReport(j.cfg.Name, j.deps.Now())
	logger := j.logger.With().Str("run_id", report.RunID).Logger()

	unlock, proceed := j.acquireLock(ctx, logger)
	if !proceed {
		report.Outcome = OutcomeSkipped
		report.Message = "duplicate trigger: another run of this job holds the lock"
		logger.Info().Msg("run skipped, lock held elsewhere")
		return report
	}
	if unlock != nil {
		defer unlock()
	}

	// A deployment without a configured store still serves triggers; every
	// run completes with no_data instead of touching a nil adapter.
	if j.deps.Store == nil {
		report.Outcome = OutcomeNoData
		report.Message = "no reading store configured"
		logger.Warn().Msg("reading store not configured, nothing to report")
		return report
	}

	readings, err := j.deps.Store.ListLatestReadings(ctx, j.cfg.SeriesKeys, j.cfg.FetchLimit)
	if err != nil {
		report.Outcome = OutcomeError
		report.Error = fmt.Sprintf("fetch readings: %v", err)
		logger.Error().Err(err).Msg("reading fetch failed")
		return report
	}
	if len(readings) == 0 {
		report.Outcome = OutcomeNoData
		report.Message = fmt.Sprintf("no readings available for %s", strings.Join(j.cfg.SeriesKeys, ", "))
		logger.Info().Msg("nothing to report, upstream read empty")
		return report
	}

	snap := reading.Reduce(readings)
	j.cacheSnapshot(ctx, snap, logger)

	rows := reading.MergeTrends(ctx, snap, j.trendLookup(logger))

	text, generated := j.generateContent(ctx, rows, &report, logger)
	if !generated {
		return report
	}
	report.ContentGenerated = true

	receipt, err := j.deps.Deliverer.Deliver(ctx, j.destination, text)
	if err != nil {
		report.Outcome = OutcomeDeliveryFailed
		report.Error = err.Error()
		logger.Error().Err(err).Msg("delivery failed, next trigger will retry")
		return report
	}

	report.Outcome = OutcomeDelivered
	report.Delivered = true
	report.DeliveryRef = receipt.ProviderRef
	logger.Info().Str("provider_ref", receipt.ProviderRef).Msg("run delivered")
	return report
}

// acquireLock guards against duplicate concurrent triggers of the same job.
// Lock errors are non-critical: the run proceeds unlocked rather than
// failing, since re-running is safe by the upsert contract.
func (j *Job) acquireLock(ctx context.Context, logger zerolog.Logger) (func(), bool) {
	if j.cfg.LockKey == 0 || j.deps.Locker == nil {
		return nil, true
	}
	unlock, acquired, err := j.deps.Locker.TryAdvisoryLock(ctx, j.cfg.LockKey)
	if err != nil {
		logger.Warn().Err(err).Msg("advisory lock unavailable, proceeding unlocked")
		return nil, true
	}
	if !acquired {
		return nil, false
	}
	return unlock, true
}

func (j *Job) cacheSnapshot(ctx context.Context, snap *reading.Snapshot, logger zerolog.Logger) {
	if j.deps.Cache == nil {
		return
	}
	ttl := j.cfg.CacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if err := j.deps.Cache.Put(ctx, j.cfg.Name, snap, ttl); err != nil {
		logger.Warn().Err(err).Msg("snapshot cache write failed")
	}
}

func (j *Job) trendLookup(logger zerolog.Logger) reading.TrendLookup {
	if j.cfg.TrendDepth <= 0 || j.deps.Trends == nil {
		return nil
	}
	return func(ctx context.Context, seriesKey string) ([]decimal.Decimal, error) {
		history, err := j.deps.Trends.ListNumericHistory(ctx, seriesKey, j.cfg.TrendDepth)
		if err != nil {
			logger.Debug().Err(err).Str("series_key", seriesKey).Msg("trend lookup failed")
		}
		return history, err
	}
}

// generateContent runs the primary strategy and, when it yields nothing,
// falls through once to the generic daily strategy. It fills the report and
// returns false when the run terminated without content.
func (j *Job) generateContent(ctx context.Context, rows []reading.TrendReading, report *RunReport, logger zerolog.Logger) (string, bool) {
	localNow := report.TriggeredAt.In(j.location)

	primary := strategy.VariantDaily
	if j.cfg.SpecialWeekday != "" {
		if weekday, ok := strategy.ParseWeekday(j.cfg.SpecialWeekday); ok {
			primary = strategy.ForDay(localNow, weekday)
		}
	}

	topic := ""
	if len(j.cfg.Topics) > 0 {
		topic = j.cfg.Topics[strategy.TopicIndex(localNow, len(j.cfg.Topics))]
	}

	text, err := j.deps.Generator.Generate(ctx, generate.Request{Variant: primary, Topic: topic, Rows: rows})
	if err != nil {
		logger.Warn().Err(err).Str("variant", string(primary)).Msg("content generation failed")
	}

	fellBack := false
	if text == "" && primary == strategy.VariantSpecial {
		fellBack = true
		text, err = j.deps.Generator.Generate(ctx, generate.Request{Variant: strategy.VariantDaily, Topic: topic, Rows: rows})
		if err != nil {
			logger.Warn().Err(err).Msg("fallback content generation failed")
		}
	}

	if text == "" {
		if err != nil {
			report.Outcome = OutcomeError
			report.Error = fmt.Sprintf("generate content: %v", err)
			return "", false
		}
		report.Outcome = OutcomeNoContent
		report.Message = "nothing worth saying today"
		if fellBack {
			// Both strategies came back empty. Still a success, but loud
			// enough for an operator to notice a quiet week.
			logger.Warn().Msg("primary and fallback strategies both produced empty content")
		}
		return "", false
	}

	return text, true
}
