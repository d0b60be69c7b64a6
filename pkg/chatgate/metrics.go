package chatgate

import "time"

// Metrics defines the interface for tracking routing and quota operations.
type Metrics interface {
	// RecordRouting records one routed message and its outcome.
	RecordRouting(provider ProviderID, outcome Outcome, duration time.Duration)

	// RecordQuotaDenial records a denial issued by the usage ledger.
	RecordQuotaDenial(provider ProviderID)

	// RecordProviderCall records the duration and status of an external
	// provider call.
	RecordProviderCall(provider ProviderID, duration time.Duration, err error)

	// RecordSnapshot records the duration and status of a durable snapshot.
	RecordSnapshot(users int, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordRouting(provider ProviderID, outcome Outcome, duration time.Duration) {}
func (n *NoopMetrics) RecordQuotaDenial(provider ProviderID)                                      {}
func (n *NoopMetrics) RecordProviderCall(provider ProviderID, duration time.Duration, err error)  {}
func (n *NoopMetrics) RecordSnapshot(users int, duration time.Duration, err error)                {}
