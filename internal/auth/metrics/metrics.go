// Package metrics exposes Prometheus counters for token issuance and
// introspection. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authserver"

type Metrics struct {
	registry *prometheus.Registry

	tokensIssued    *prometheus.CounterVec
	tokenFailures   *prometheus.CounterVec
	introspections  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by grant type and kind (access, refresh).",
		}, []string{"grant_type", "kind"}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_failures_total",
			Help:      "Rejected token requests by grant type and OAuth2 error code.",
		}, []string{"grant_type", "error"}),
		introspections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "introspections_total",
			Help:      "token_key and check_token calls by outcome.",
		}, []string{"endpoint", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.tokensIssued,
		m.tokenFailures,
		m.introspections,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TokenIssued counts an issued access token and, when refresh is true, the
// refresh token issued with it.
func (m *Metrics) TokenIssued(grantType string, refresh bool) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(grantType, "access").Inc()
	if refresh {
		m.tokensIssued.WithLabelValues(grantType, "refresh").Inc()
	}
}

// TokenFailed counts a rejected token request.
func (m *Metrics) TokenFailed(grantType, code string) {
	if m == nil {
		return
	}
	m.tokenFailures.WithLabelValues(grantType, code).Inc()
}

// Introspection counts a token_key or check_token call. outcome is "ok" or
// the OAuth2 error code.
func (m *Metrics) Introspection(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.introspections.WithLabelValues(endpoint, outcome).Inc()
}

// Middleware records the latency of every request under route.
func (m *Metrics) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.requestDuration.WithLabelValues(route, strconv.Itoa(sw.status)).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
