package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the authorization core
type Metrics struct {
	// Permission evaluation metrics
	DecisionsTotal       *prometheus.CounterVec
	EvaluationErrors     prometheus.Counter

	// Permission cache metrics
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     prometheus.Counter
	CacheDegradedTotal   prometheus.Counter

	// Quota metrics
	QuotaRejectionsTotal prometheus.Counter
	QuotaFailOpenTotal   prometheus.Counter

	// Audit recorder metrics
	AuditQueueDepth      prometheus.Gauge
	AuditRetriesTotal    prometheus.Counter
	AuditDroppedTotal    *prometheus.CounterVec
	AuditPersistedTotal  prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wfm_authz_decisions_total",
				Help: "Permission evaluation decisions by outcome",
			},
			[]string{"resource", "action", "outcome"},
		),
		EvaluationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_authz_evaluation_errors_total",
				Help: "Permission evaluations that failed with an internal error",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wfm_permission_cache_hits_total",
				Help: "Permission cache hits by tier (l1, l2)",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_permission_cache_misses_total",
				Help: "Permission cache misses resolved from the role registry",
			},
		),
		CacheDegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_permission_cache_degraded_total",
				Help: "Permission resolutions served in degraded mode (cache store unreachable)",
			},
		),
		QuotaRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_quota_rejections_total",
				Help: "Requests rejected because a daily quota was exhausted",
			},
		),
		QuotaFailOpenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_quota_fail_open_total",
				Help: "Quota consumptions waved through because the counter store was unreachable",
			},
		),
		AuditQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wfm_audit_queue_depth",
				Help: "Entries currently waiting in the audit recorder queue",
			},
		),
		AuditRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_audit_retries_total",
				Help: "Audit persistence attempts that were retried",
			},
		),
		AuditDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wfm_audit_dropped_total",
				Help: "Audit entries dropped by reason (queue_full, persist_failed)",
			},
			[]string{"reason"},
		),
		AuditPersistedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wfm_audit_persisted_total",
				Help: "Audit entries successfully persisted",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.DecisionsTotal,
			m.EvaluationErrors,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.CacheDegradedTotal,
			m.QuotaRejectionsTotal,
			m.QuotaFailOpenTotal,
			m.AuditQueueDepth,
			m.AuditRetriesTotal,
			m.AuditDroppedTotal,
			m.AuditPersistedTotal,
		)
	}

	return m
}

// NopMetrics returns unregistered metrics, for tests and optional wiring
func NopMetrics() *Metrics {
	return NewMetrics(nil)
}

// Handler returns the HTTP handler exposing the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
