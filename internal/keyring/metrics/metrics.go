package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for keyring lookups.
type Metrics struct {
	// Lookups by scope that answered: "pid", "global" or "miss"
	Lookups *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		Lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "clearinghouse_keyring_lookups_total",
			Help: "Keyring lookups by the scope that answered",
		}, []string{"result"}),
	}
}

// IncrementLookup records one lookup result.
func (m *Metrics) IncrementLookup(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}
