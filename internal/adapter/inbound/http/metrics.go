// Package http provides the HTTP transport adapter for the pipeline.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for CES Gate. Pass to components that
// need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Classifications *prometheus.CounterVec
	Verdicts        *prometheus.CounterVec
	PoliciesLoaded  prometheus.Gauge
	AuditDropsTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cesgate",
				Name:      "requests_total",
				Help:      "Total number of pipeline requests processed",
			},
			[]string{"status"}, // status=ok/bad_request
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cesgate",
				Name:      "request_duration_seconds",
				Help:      "Pipeline request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		Classifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cesgate",
				Name:      "classifications_total",
				Help:      "Total intent classifications by resulting domain",
			},
			[]string{"domain", "impact"},
		),
		Verdicts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cesgate",
				Name:      "verdicts_total",
				Help:      "Total gate verdicts",
			},
			[]string{"result"}, // result=allow/block
		),
		PoliciesLoaded: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cesgate",
				Name:      "policies_loaded",
				Help:      "Number of constitution policies in the live rule set",
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "cesgate",
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to backpressure",
			},
		),
	}
}
