package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Outcome names the terminal state of one job run. Every outcome except
// OutcomeError is a completed run from the infrastructure's point of view.
type Outcome string

const (
	// OutcomeDelivered means content was generated and the channel accepted it.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeDeliveryFailed means the channel rejected or errored; the next
	// scheduled trigger is the retry mechanism.
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	// OutcomeNoData means the upstream read returned nothing to report.
	OutcomeNoData Outcome = "no_data"
	// OutcomeNoContent means every content strategy produced empty text.
	OutcomeNoContent Outcome = "no_content"
	// OutcomeSkipped means a concurrent run of the same job holds the lock.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeUnauthorized means the trigger credential was rejected before
	// any side effect ran.
	OutcomeUnauthorized Outcome = "unauthorized"
	// OutcomeError means an adapter failed outside its documented contract.
	OutcomeError Outcome = "error"
)

// RunReport is the structured result of one job invocation. It is created
// once per run, returned to the triggering layer, and never persisted.
type RunReport struct {
	RunID            string    `json:"run_id"`
	JobName          string    `json:"job_name"`
	TriggeredAt      time.Time `json:"triggered_at"`
	Authorized       bool      `json:"authorized"`
	Outcome          Outcome   `json:"outcome"`
	ContentGenerated bool      `json:"content_generated"`
	Delivered        bool      `json:"delivered"`
	DeliveryRef      string    `json:"delivery_ref,omitempty"`
	Message          string    `json:"message,omitempty"`
	Error            string    `json:"error,omitempty"`
}

func newRunReport(jobName string, triggeredAt time.Time) RunReport {
	return RunReport{
		RunID:       uuid.NewString(),
		JobName:     jobName,
		TriggeredAt: triggeredAt.UTC(),
		Authorized:  true,
	}
}

// NewUnauthorizedReport builds the report returned when the authorization
// gate rejects a trigger. No pipeline stage has run at that point.
func NewUnauthorizedReport(jobName, reason string, triggeredAt time.Time) RunReport {
	return RunReport{
		RunID:       uuid.NewString(),
		JobName:     jobName,
		TriggeredAt: triggeredAt.UTC(),
		Authorized:  false,
		Outcome:     OutcomeUnauthorized,
		Message:     reason,
	}
}
