// Package metrics holds the Prometheus collectors for the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors, registered on a private
// registry so tests and embedded servers never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Tool call metrics.
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	RetriesTotal *prometheus.CounterVec
	DryRunsTotal *prometheus.CounterVec

	// Policy and rate limiting.
	PolicyDenialsTotal       *prometheus.CounterVec
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Result cache.
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Catalog.
	CatalogTools       *prometheus.GaugeVec
	CatalogDiagnostics prometheus.Gauge

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdkmcp_tool_calls_total",
			Help: "Total number of tool calls by outcome.",
		}, []string{"tool", "outcome"}),

		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sdkmcp_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds, including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),

		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdkmcp_tool_retries_total",
			Help: "Total number of retried invocation attempts.",
		}, []string{"tool"}),

		DryRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdkmcp_tool_dry_runs_total",
			Help: "Total number of dry-run executions of dangerous tools.",
		}, []string{"tool"}),

		PolicyDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdkmcp_policy_denials_total",
			Help: "Total number of calls denied by policy.",
		}, []string{"tool"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdkmcp_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"tool"}),

		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdkmcp_cache_hits_total",
			Help: "Total number of result cache hits.",
		}),

		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdkmcp_cache_misses_total",
			Help: "Total number of result cache misses.",
		}),

		CatalogTools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sdkmcp_catalog_tools",
			Help: "Number of cataloged tools per SDK family.",
		}, []string{"family"}),

		CatalogDiagnostics: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sdkmcp_catalog_diagnostics",
			Help: "Number of targets skipped during catalog discovery.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sdkmcp_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.CallsTotal,
		m.CallDuration,
		m.RetriesTotal,
		m.DryRunsTotal,
		m.PolicyDenialsTotal,
		m.RateLimitRejectionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogTools,
		m.CatalogDiagnostics,
		m.ServerStartTime,
	)
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall records the outcome and duration of one tool call.
func (m *Metrics) ObserveCall(tool, outcome string, d time.Duration) {
	m.CallsTotal.WithLabelValues(tool, outcome).Inc()
	m.CallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// IncRetries adds retried attempts for a tool.
func (m *Metrics) IncRetries(tool string, n uint64) {
	m.RetriesTotal.WithLabelValues(tool).Add(float64(n))
}

// IncDryRun increments the dry-run counter for a tool.
func (m *Metrics) IncDryRun(tool string) {
	m.DryRunsTotal.WithLabelValues(tool).Inc()
}

// IncPolicyDenial increments the policy denial counter for a tool.
func (m *Metrics) IncPolicyDenial(tool string) {
	m.PolicyDenialsTotal.WithLabelValues(tool).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(tool string) {
	m.RateLimitRejectionsTotal.WithLabelValues(tool).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() { m.CacheHitsTotal.Inc() }

// IncCacheMiss increments the cache miss counter.
func (m *Metrics) IncCacheMiss() { m.CacheMissesTotal.Inc() }

// SetCatalogSize records the per-family tool counts and diagnostic count.
func (m *Metrics) SetCatalogSize(perFamily map[string]int, diagnostics int) {
	for family, n := range perFamily {
		m.CatalogTools.WithLabelValues(family).Set(float64(n))
	}
	m.CatalogDiagnostics.Set(float64(diagnostics))
}
