package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                           {}
func (n *NoopSink) TickCompleted(duration time.Duration, fired int, err error)             {}
func (n *NoopSink) FireCoalesced()                                                         {}
func (n *NoopSink) MisfireDropped()                                                        {}
func (n *NoopSink) FetchCompleted(sourceType, outcome string, duration time.Duration)      {}
func (n *NoopSink) FetchRetry()                                                            {}
func (n *NoopSink) TransformCompleted(outcome string, duration time.Duration)              {}
func (n *NoopSink) DeliveryAttemptCompleted(attempt int, outcome string, d time.Duration)  {}
func (n *NoopSink) DeliveryOutcome(outcome string)                                         {}
func (n *NoopSink) RunCompleted(stage string, outcome string, duration time.Duration)      {}
