// Package metrics provides Prometheus observability for the policy engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records evaluation, cache, and audit metrics. A nil *Metrics is
// valid and records nothing, so callers never need to guard.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationErrors   prometheus.Counter
	evaluationDuration prometheus.Histogram
	candidatePolicies  prometheus.Histogram

	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter

	auditDroppedTotal prometheus.Counter
	policyReloads     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry. Standard Go and
// process collectors are registered alongside the engine metrics.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of policy evaluations by decision",
		},
		[]string{"decision"},
	)

	evaluationErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Total number of evaluations that failed closed on a store error",
		},
	)

	// Evaluation latency: 10µs to 100ms
	evaluationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_microseconds",
			Help:      "Policy evaluation latency in microseconds",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 10000, 50000, 100000},
		},
	)

	candidatePolicies := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_policies",
			Help:      "Number of candidate policies considered per evaluation",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	cacheHitsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of policy cache hits",
		},
	)

	cacheMissesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of policy cache misses",
		},
	)

	auditDroppedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Total number of audit records dropped due to buffer overflow",
		},
	)

	policyReloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_reloads_total",
			Help:      "Total number of policy reloads by outcome",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		evaluationsTotal,
		evaluationErrors,
		evaluationDuration,
		candidatePolicies,
		cacheHitsTotal,
		cacheMissesTotal,
		auditDroppedTotal,
		policyReloads,
	)

	return &Metrics{
		evaluationsTotal:   evaluationsTotal,
		evaluationErrors:   evaluationErrors,
		evaluationDuration: evaluationDuration,
		candidatePolicies:  candidatePolicies,
		cacheHitsTotal:     cacheHitsTotal,
		cacheMissesTotal:   cacheMissesTotal,
		auditDroppedTotal:  auditDroppedTotal,
		policyReloads:      policyReloads,
		registry:           registry,
	}
}

// RecordEvaluation records a completed evaluation.
func (m *Metrics) RecordEvaluation(decision string, duration time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(decision).Inc()
	m.evaluationDuration.Observe(float64(duration.Microseconds()))
	m.candidatePolicies.Observe(float64(candidates))
}

// RecordEvaluationError records an evaluation that failed closed.
func (m *Metrics) RecordEvaluationError() {
	if m == nil {
		return
	}
	m.evaluationErrors.Inc()
}

// RecordCacheHit records a policy cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a policy cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Inc()
}

// RecordAuditDropped records audit records lost to buffer overflow.
func (m *Metrics) RecordAuditDropped(count int) {
	if m == nil {
		return
	}
	m.auditDroppedTotal.Add(float64(count))
}

// RecordPolicyReload records a policy reload attempt.
func (m *Metrics) RecordPolicyReload(outcome string) {
	if m == nil {
		return
	}
	m.policyReloads.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
