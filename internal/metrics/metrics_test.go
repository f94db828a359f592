package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordHTTPRequest("get", "/api/events/{id}", http.StatusOK, 20*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/events/{id}", http.StatusOK, 10*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/events/{id}", http.StatusNotFound, time.Millisecond)
	m.FailedLogins().Inc()
	m.ObserveFlowRequest("flow.ExecuteScript", "ok")
	m.ObserveFlowRequest("flow.ExecuteScript", "error")
	m.ObserveFlowRequest("flow.ExecuteScript", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/events/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/events/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedLogins))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.flowRequests.WithLabelValues("flow.ExecuteScript", "error")))

	m.IncInFlight()
	m.IncInFlight()
	m.DecInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.FailedLogins().Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "kaizen_auth_failed_logins_total 1")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.FailedLogins().Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.failedLogins))
	assert.NotSame(t, a.Registry(), b.Registry())
}
