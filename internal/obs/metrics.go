package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors. One instance is
// constructed at start-up and passed by reference to every component that
// reports a counter, matching the teacher's practice of building long-lived
// collaborator handles once and sharing references.
type Metrics struct {
	Registry *prometheus.Registry

	PipelineDecisions  *prometheus.CounterVec
	ScannerDuration    *prometheus.HistogramVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	DedupFanIn         prometheus.Counter
	BreakerState       *prometheus.GaugeVec
	PoolWaitDuration   *prometheus.HistogramVec
	UpstreamDuration   *prometheus.HistogramVec
}

// NewMetrics registers all collectors against a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		PipelineDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxilion_pipeline_decisions_total",
			Help: "Count of pipeline decisions by action and threat level.",
		}, []string{"action", "threat_level"}),
		ScannerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxilion_scanner_duration_seconds",
			Help:    "Per-scanner execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scanner_id"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxilion_cache_hits_total",
			Help: "Response cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxilion_cache_misses_total",
			Help: "Response cache misses.",
		}),
		DedupFanIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxilion_dedup_fanin_total",
			Help: "Requests that joined an in-flight upstream call instead of starting a new one.",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "proxilion_circuit_breaker_state",
			Help: "Circuit breaker state per host (0=closed, 1=half-open, 2=open).",
		}, []string{"host"}),
		PoolWaitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxilion_pool_wait_seconds",
			Help:    "Time spent waiting for a pooled connection.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxilion_upstream_duration_seconds",
			Help:    "Upstream call duration by host and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host", "outcome"}),
	}

	reg.MustRegister(
		m.PipelineDecisions, m.ScannerDuration, m.CacheHits, m.CacheMisses,
		m.DedupFanIn, m.BreakerState, m.PoolWaitDuration, m.UpstreamDuration,
	)
	return m
}

// Handler exposes the registry at /metrics/prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
