package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Scheduler metrics
	TickStarted()
	TickCompleted(duration time.Duration, fired int, err error)
	FireCoalesced()
	MisfireDropped()

	// Fetch metrics
	FetchCompleted(sourceType string, outcome string, duration time.Duration)
	FetchRetry()

	// Transform metrics
	TransformCompleted(outcome string, duration time.Duration)

	// Delivery metrics
	DeliveryAttemptCompleted(attempt int, outcome string, duration time.Duration)
	DeliveryOutcome(outcome string)

	// Pipeline metrics
	RunCompleted(stage string, outcome string, duration time.Duration)
}

// Outcome constants shared across sink methods.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)
