package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"pulsewire/internal/jobs"
)

// RunJob executes one configured job immediately and prints its run report.
// It is the manual equivalent of one scheduled trigger, useful for testing a
// deployment before handing the schedule to a clock.
func (a *App) RunJob(ctx context.Context, name string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	snapCache, closeCache := a.openCache()
	if closeCache != nil {
		defer closeCache()
	}

	registry, err := a.buildRegistry(store, snapCache)
	if err != nil {
		return err
	}

	job, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown job %q (configured: %v)", name, registry.Names())
	}

	report := job.Run(ctx)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return err
	}

	if report.Outcome == jobs.OutcomeError {
		return fmt.Errorf("run %s finished with outcome %s", report.RunID, report.Outcome)
	}
	return nil
}
