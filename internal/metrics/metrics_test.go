package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordResult(t *testing.T) {
	m := New(func() int { return 3 }, func() int { return 1 }, func() int { return 2 })

	m.RecordResult("AuthSuccess")
	m.RecordResult("AuthSuccess")
	m.RecordResult("AlreadyOnLS")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("AuthSuccess")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("AlreadyOnLS")))
}

func TestGaugesSampleLiveState(t *testing.T) {
	sessions := 0
	m := New(func() int { return sessions }, func() int { return 0 }, func() int { return 0 })

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	sessions = 7
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordResult("AuthSuccess") })
}

func TestHandlerServesExposition(t *testing.T) {
	m := New(func() int { return 1 }, func() int { return 0 }, func() int { return 0 })
	m.RecordResult("AuthSuccess")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "logind_login_attempts_total")
	assert.Contains(t, body, "logind_active_sessions 1")
}
