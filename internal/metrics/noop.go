package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return NoopRecorder{}
}

// ObserveOperation is a no-op.
func (NoopRecorder) ObserveOperation(string, error, time.Duration) {}
