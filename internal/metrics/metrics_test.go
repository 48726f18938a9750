package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.LoginAttempt(LoginFailed)
	m.LoginAttempt(LoginFailed)
	m.LoginAttempt(LoginSucceeded)
	m.AuthorizationDecision(false, "not_owner")
	m.CleanupRemoved("local", 3)
	m.CleanupRemoved("local", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authzDecisions.WithLabelValues("denied", "not_owner")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.cleanupRemoved.WithLabelValues("local")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestStarted()
		m.RequestFinished("GET", "/users", 200, time.Millisecond)
		m.LoginAttempt(LoginThrottled)
		m.AuthorizationDecision(true, "")
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RequestStarted()
	m.RequestFinished("GET", "/users/:id", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/users/:id",status="200"} 1`)
}
