package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.TokenIssued("password", true)
	m.TokenIssued("client_credentials", false)
	m.TokenFailed("password", "invalid_grant")
	m.Introspection("check_token", "ok")

	require.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("password", "access")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("password", "refresh")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("client_credentials", "refresh")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.tokenFailures.WithLabelValues("password", "invalid_grant")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.introspections.WithLabelValues("check_token", "ok")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.TokenIssued("password", true)
	m.TokenFailed("password", "invalid_grant")
	m.Introspection("token_key", "ok")

	h := m.Middleware("/x")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestHandlerAndMiddleware(t *testing.T) {
	t.Parallel()

	m := New()
	h := m.Middleware("/oauth/token")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/oauth/token", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `authserver_http_request_duration_seconds_count{code="400",route="/oauth/token"} 1`), body)
}
