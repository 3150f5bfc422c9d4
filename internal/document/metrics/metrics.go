package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document log.
type Metrics struct {
	DocumentsAppended  prometheus.Counter
	AppendLatency      prometheus.Histogram
	ChainVerifications *prometheus.CounterVec
	ReceiptsDropped    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearinghouse_documents_appended_total",
			Help: "Total documents durably appended to the log",
		}),
		AppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearinghouse_document_append_duration_seconds",
			Help:    "Duration of appends including the per-pid lock wait",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ChainVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clearinghouse_chain_verifications_total",
			Help: "Hash chain verifications by outcome",
		}, []string{"outcome"}),
		ReceiptsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "clearinghouse_receipts_dropped_total",
			Help: "Receipts that could not be handed to the receipt stream",
		}),
	}
}

func (m *Metrics) ObserveAppend(d time.Duration) {
	if m != nil {
		m.DocumentsAppended.Inc()
		m.AppendLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementVerification(valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "broken"
	}
	m.ChainVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementReceiptsDropped() {
	if m != nil {
		m.ReceiptsDropped.Inc()
	}
}
