// Package clock provides the optional in-process cron clock. Deployments
// that already have an external scheduler hitting the trigger endpoints
// leave it disabled; everyone else gets the same runs fired locally.
package clock

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"pulsewire/internal/jobs"
)

// Runnable is the slice of a job the clock needs: a name for logs, a cron
// schedule, and an entry point.
type Runnable interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) jobs.RunReport
}

// Clock fires job runs on their cron schedules in the configured location.
type Clock struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New builds a clock in the given location. Jobs without a schedule are
// skipped with a log line rather than rejected, so a config that relies on
// external triggering for some jobs stays valid.
func New(location *time.Location, logger zerolog.Logger) *Clock {
	if location == nil {
		location = time.UTC
	}
	return &Clock{
		cron:   cron.New(cron.WithLocation(location)),
		logger: logger.With().Str("component", "clock").Logger(),
	}
}

// Register adds a job to the clock. Returns the error from cron spec
// parsing so a bad schedule fails startup instead of silently never firing.
func (c *Clock) Register(job Runnable) error {
	if job.Schedule() == "" {
		c.logger.Info().Str("job", job.Name()).Msg("no schedule configured, job is trigger-only")
		return nil
	}

	logger := c.logger.With().Str("job", job.Name()).Logger()
	_, err := c.cron.AddFunc(job.Schedule(), func() {
		report := job.Run(context.Background())
		logger.Info().
			Str("run_id", report.RunID).
			Str("outcome", string(report.Outcome)).
			Msg("scheduled run finished")
	})
	if err != nil {
		return err
	}

	logger.Info().Str("schedule", job.Schedule()).Msg("job registered with local clock")
	return nil
}

// Start begins firing schedules and returns immediately.
func (c *Clock) Start() {
	c.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (c *Clock) Stop() {
	<-c.cron.Stop().Done()
}
