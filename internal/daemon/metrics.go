package daemon

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-method request counts and latencies.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	started  prometheus.Gauge
}

// NewMetrics creates daemon metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wtmpdb",
			Subsystem: "daemon",
			Name:      "requests_total",
			Help:      "Requests handled by the daemon, by method and outcome",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wtmpdb",
			Subsystem: "daemon",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"method"}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wtmpdb",
			Subsystem: "daemon",
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of daemon start",
		}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.started)
	m.started.SetToCurrentTime()
	return m
}

// Registry returns the registry holding the daemon metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(method, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// WriteTextfile writes the current metrics in the node-exporter textfile
// format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
