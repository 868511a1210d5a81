// Package telemetry provides observability primitives for the portal client.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the portal client.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// FetchCalls counts calls into a cached fetcher; FetchNetwork counts the
	// subset that reached the gateway. The gap is single-flight reuse.
	FetchCalls   *prometheus.CounterVec
	FetchNetwork *prometheus.CounterVec

	PollsTotal        *prometheus.CounterVec
	SnapshotsRecorded prometheus.Counter
	UsageUsed         *prometheus.GaugeVec
	UsageRemaining    *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "gateway_requests_total",
			Help:      "Total gateway HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "devportal",
			Name:                            "gateway_request_duration_seconds",
			Help:                            "Gateway HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "transport_cache_hits_total",
			Help:      "Total transport GET cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "transport_cache_misses_total",
			Help:      "Total transport GET cache misses.",
		}),

		FetchCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "fetch_calls_total",
			Help:      "Total calls into a cached fetcher.",
		}, []string{"resource"}),

		FetchNetwork: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "fetch_network_total",
			Help:      "Total cached-fetcher calls that reached the gateway.",
		}, []string{"resource"}),

		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "usage_polls_total",
			Help:      "Total usage poll attempts by outcome.",
		}, []string{"status"}),

		SnapshotsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devportal",
			Name:      "usage_snapshots_recorded_total",
			Help:      "Total usage snapshots written to the local store.",
		}),

		UsageUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devportal",
			Name:      "usage_used",
			Help:      "Requests used today per usage plan.",
		}, []string{"plan"}),

		UsageRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "devportal",
			Name:      "usage_remaining",
			Help:      "Requests remaining today per usage plan.",
		}, []string{"plan"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.CacheHits,
		m.CacheMisses,
		m.FetchCalls,
		m.FetchNetwork,
		m.PollsTotal,
		m.SnapshotsRecorded,
		m.UsageUsed,
		m.UsageRemaining,
	)

	return m
}
