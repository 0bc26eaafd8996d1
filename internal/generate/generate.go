// Package generate talks to the hosted content-generation service that turns
// a snapshot into channel-ready text.
package generate

import (
	"context"

	"pulsewire/internal/reading"
	"pulsewire/internal/strategy"
)

// Request describes one content-generation call.
type Request struct {
	Variant strategy.Variant
	Topic   string
	Rows    []reading.TrendReading
}

// Generator produces channel-ready text from a snapshot. An empty string
// with a nil error means "nothing worth saying" and is a legitimate outcome,
// not a failure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
