package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gateway outcomes per operation.
type Metrics struct {
	Requests        *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearinghouse_gateway_requests_total",
			Help: "Envelopes handled by operation and outcome (result or rejection)",
		}, []string{"operation", "outcome"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearinghouse_gateway_rejections_total",
			Help: "Rejections by operation, reason and the pipeline state that rejected",
		}, []string{"operation", "reason", "state"}),
		BackendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clearinghouse_gateway_backend_duration_seconds",
			Help:    "Time spent in backend calls per operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementResult(operation string) {
	if m != nil {
		m.Requests.WithLabelValues(operation, "result").Inc()
	}
}

func (m *Metrics) IncrementRejection(operation, reason, state string) {
	if m != nil {
		m.Requests.WithLabelValues(operation, "rejection").Inc()
		m.Rejections.WithLabelValues(operation, reason, state).Inc()
	}
}

func (m *Metrics) ObserveBackend(operation string, d time.Duration) {
	if m != nil {
		m.BackendDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
