package transport

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multipass",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Outbound requests executed by the HTTP provider.",
		},
		[]string{"method", "host", "status"},
	)
	duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "multipass",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Outbound request duration in seconds, including retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "host", "status"},
	)
)

// RegisterMetrics registers the transport collectors with the default
// Prometheus registry. Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requests, duration)
	})
}

// status is 0 when no response was received.
func recordRequest(method, host string, status int, elapsed time.Duration) {
	RegisterMetrics()
	label := strconv.Itoa(status)
	requests.WithLabelValues(method, host, label).Inc()
	duration.WithLabelValues(method, host, label).Observe(elapsed.Seconds())
}
