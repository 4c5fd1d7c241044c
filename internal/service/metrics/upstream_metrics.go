// Package metrics holds the latency and error series for calls to upstream
// market data and sentiment APIs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "niftypulse",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of upstream API calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "niftypulse",
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Errors by upstream endpoint",
		},
		[]string{"provider", "endpoint"},
	)
)

// Register adds the series to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(UpstreamLatency, UpstreamErrors)
	})
}

// Observe records one call that started at start.
func Observe(provider, endpoint string, start time.Time, err error) {
	Register()
	UpstreamLatency.WithLabelValues(provider, endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		UpstreamErrors.WithLabelValues(provider, endpoint).Inc()
	}
}
