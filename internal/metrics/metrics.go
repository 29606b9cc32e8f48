package metrics

import "time"

// Recorder collects sync pipeline metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// Upstream aggregator calls; outcome is aggregator.Classify of the error.
	RecordUpstreamCall(operation, outcome string, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)

	// One per account attempt; status is "success" or "error".
	RecordAccountSync(status string, duration time.Duration)
	RecordTransactions(fetched, inserted int)
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordUpstreamCall(string, string, time.Duration) {}
func (NoOpRecorder) RecordCircuitState(string, CircuitState) {}
func (NoOpRecorder) RecordAccountSync(string, time.Duration) {}
func (NoOpRecorder) RecordTransactions(int, int) {}
