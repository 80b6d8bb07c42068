// Package metrics provides instrumentation hooks for the user service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"userrepo/internal/errs"
)

// Recorder captures the outcome of one service operation.
type Recorder interface {
	ObserveOperation(operation string, err error, took time.Duration)
}

// ResultLabel is "ok" for a nil error, otherwise the error kind.
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errs.KindOf(err).String()
}

// Prometheus implements Recorder with a counter and a latency histogram.
type Prometheus struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheus registers the collectors on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "userrepo",
				Name:      "user_operations_total",
				Help:      "Total number of user service operations by result.",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "userrepo",
				Name:      "user_operation_duration_seconds",
				Help:      "Latency of user service operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	for _, c := range []prometheus.Collector{p.operations, p.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveOperation implements Recorder.
func (p *Prometheus) ObserveOperation(operation string, err error, took time.Duration) {
	p.operations.WithLabelValues(operation, ResultLabel(err)).Inc()
	p.duration.WithLabelValues(operation).Observe(took.Seconds())
}
