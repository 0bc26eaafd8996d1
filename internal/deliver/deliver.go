// Package deliver sends generated content through a delivery channel and
// reports the provider outcome. Delivery is at-least-once: a failed attempt
// is not retried within a run, the next scheduled trigger is the retry.
package deliver

import "context"

// Receipt carries the provider-issued reference for a successful delivery.
type Receipt struct {
	ProviderRef string
}

// Deliverer pushes text to one opaque destination (phone number, account
// handle) and reports success or failure.
type Deliverer interface {
	Deliver(ctx context.Context, destination, text string) (Receipt, error)
}
