package chain

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the Prometheus metrics for the host.
type Metrics struct {
	txDuration *prometheus.HistogramVec
	txsTotal   *prometheus.CounterVec
	callDepth  prometheus.Histogram
}

// NewMetrics creates and registers the metrics for the host.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chain_tx_duration_seconds",
			Help:    "Time taken to execute a top-level call, including rollback.",
			Buckets: prometheus.DefBuckets,
		}, []string{"committed"}),
		txsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_txs_total",
			Help: "Total number of top-level calls, labeled by outcome.",
		}, []string{"result"}),
		callDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chain_tx_max_call_depth",
			Help:    "Deepest nested cross-registry call reached by a top-level call.",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}),
	}
	reg.MustRegister(m.txDuration, m.txsTotal, m.callDepth)
	return m
}

func (m *Metrics) observe(committed bool, depth int, dur time.Duration) {
	result := "revert"
	if committed {
		result = "commit"
	}
	m.txsTotal.WithLabelValues(result).Inc()
	m.txDuration.WithLabelValues(strconv.FormatBool(committed)).Observe(dur.Seconds())
	m.callDepth.Observe(float64(depth))
}
