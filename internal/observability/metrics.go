// Package observability provides Prometheus metrics for the auth service.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// Ensure Metrics implements AuthMetrics
var _ driven.AuthMetrics = (*Metrics)(nil)

// Metrics contains the service's custom Prometheus metrics.
type Metrics struct {
	FlowsTotal       *prometheus.CounterVec
	TokenVerifyTotal *prometheus.CounterVec
	CacheOpsTotal    *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// NewMetrics creates and registers the auth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_flows_total",
				Help: "Credential flows by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		TokenVerifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_token_verifications_total",
				Help: "Token verifications by expected purpose and result",
			},
			[]string{"purpose", "result"},
		),
		CacheOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_cache_operations_total",
				Help: "Cache operations by operation and result",
			},
			[]string{"op", "result"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authcore_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(m.FlowsTotal)
	reg.MustRegister(m.TokenVerifyTotal)
	reg.MustRegister(m.CacheOpsTotal)
	reg.MustRegister(m.HTTPDuration)

	return m
}

func (m *Metrics) FlowCompleted(flow, outcome string) {
	m.FlowsTotal.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) TokenVerified(purpose, result string) {
	m.TokenVerifyTotal.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) CacheOperation(op, result string) {
	m.CacheOpsTotal.WithLabelValues(op, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
