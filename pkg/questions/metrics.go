package questions

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// persistTotal counts persist attempts by result and failure kind.
	persistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionflow_persist_total",
			Help: "Total number of question persist attempts.",
		},
		[]string{"result", "kind"},
	)

	// persistDuration records the store round-trip time of a persist attempt.
	persistDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "questionflow_persist_duration_seconds",
			Help:    "Duration of question persist calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(persistTotal, persistDuration)
}
