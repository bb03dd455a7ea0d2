package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProxyMetrics holds Prometheus collectors for the verify/resign/forward
// pipeline. It implements the proxy package's Observer interface.
type ProxyMetrics struct {
	authFailures   *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	forwardedBytes *prometheus.CounterVec
	healthChecks   *prometheus.CounterVec
}

// NewProxyMetrics registers proxy metrics on the provided registry.
func NewProxyMetrics(reg *prometheus.Registry) *ProxyMetrics {
	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3proxy",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Total rejected requests by reason.",
	}, []string{"reason"}) // reason = malformed | access_key_mismatch | signature_mismatch | expired
	upstreamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3proxy",
		Subsystem: "upstream",
		Name:      "errors_total",
		Help:      "Total failed origin exchanges by kind.",
	}, []string{"kind"})
	forwardedBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3proxy",
		Subsystem: "upstream",
		Name:      "forwarded_bytes_total",
		Help:      "Total body bytes relayed, partitioned by direction.",
	}, []string{"direction"})
	healthChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "s3proxy",
		Subsystem: "health",
		Name:      "checks_total",
		Help:      "Total origin health probes by result.",
	}, []string{"result"}) // result = "ok" | "nok"

	_ = reg.Register(authFailures)
	_ = reg.Register(upstreamErrors)
	_ = reg.Register(forwardedBytes)
	_ = reg.Register(healthChecks)

	return &ProxyMetrics{
		authFailures:   authFailures,
		upstreamErrors: upstreamErrors,
		forwardedBytes: forwardedBytes,
		healthChecks:   healthChecks,
	}
}

// ObserveAuthFailure counts a rejected request.
func (p *ProxyMetrics) ObserveAuthFailure(reason string) {
	p.authFailures.WithLabelValues(reason).Inc()
}

// ObserveUpstreamError counts a failed origin exchange.
func (p *ProxyMetrics) ObserveUpstreamError(kind string) {
	p.upstreamErrors.WithLabelValues(kind).Inc()
}

// ObserveForwardedBytes adds relayed body bytes for one direction.
func (p *ProxyMetrics) ObserveForwardedBytes(direction string, n int64) {
	if n > 0 {
		p.forwardedBytes.WithLabelValues(direction).Add(float64(n))
	}
}

// ObserveHealthCheck counts a health probe result.
func (p *ProxyMetrics) ObserveHealthCheck(healthy bool) {
	result := "nok"
	if healthy {
		result = "ok"
	}
	p.healthChecks.WithLabelValues(result).Inc()
}
