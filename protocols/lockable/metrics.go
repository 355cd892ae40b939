package lockable

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the Prometheus metrics for a registry.
type Metrics struct {
	opDuration  *prometheus.HistogramVec
	opsTotal    *prometheus.CounterVec
	remoteCalls *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics for a registry. Every series carries a
// constant "registry" label so several registries can share one Registerer.
func NewMetrics(reg prometheus.Registerer, registry string) *Metrics {
	reg = prometheus.WrapRegistererWith(prometheus.Labels{"registry": registry}, reg)
	m := &Metrics{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lockable_operation_duration_seconds",
			Help:    "Time taken by a registry operation, including nested calls to peers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockable_operations_total",
			Help: "Total number of registry operations, labeled by operation and error kind.",
		}, []string{"op", "result"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockable_peer_calls_total",
			Help: "Total number of calls made to peer registries, labeled by method.",
		}, []string{"method"}),
	}
	reg.MustRegister(m.opDuration, m.opsTotal, m.remoteCalls)
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	m.opsTotal.WithLabelValues(op, result).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) peerCall(method string) {
	m.remoteCalls.WithLabelValues(method).Inc()
}
