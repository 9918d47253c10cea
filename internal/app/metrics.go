package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Matches           *prometheus.CounterVec
	Answers           *prometheus.CounterVec
	BroadcastFailures prometheus.Counter
}

// NewMetrics builds the collectors and registers them with reg. A nil
// registerer leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_operations_total",
			Help: "Engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trivia_operation_duration_seconds",
			Help:    "Engine operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_matches_total",
			Help: "Games created from the match queue or from invitations.",
		}, []string{"source"}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_answers_total",
			Help: "Accepted answers by correctness.",
		}, []string{"correct"}),
		BroadcastFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "trivia_broadcast_failures_total",
			Help: "Snapshot publishes that failed after commit.",
		}),
	}
}

func (m *Metrics) observeOperation(op, outcome string, elapsed time.Duration) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
