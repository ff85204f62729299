package sinks

import "context"

// Sink delivers run-outcome events to a downstream destination (SQS, SNS,
// Pub/Sub, HTTP, ...). Delivery is best-effort notification, never part of
// the run's own success or failure.
type Sink interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}
