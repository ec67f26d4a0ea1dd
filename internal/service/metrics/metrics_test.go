package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(func() int { return 3 })

	m.RecordTurn("dental", true)
	m.RecordTurn("dental", false)
	m.RecordOutcome("negative")
	m.RecordBackend(2*time.Second, errors.New("timeout"))
	m.RecordSweep(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Turns.WithLabelValues("dental")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UrgentTurns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("negative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsSwept))
}

func TestHandlerExposesActiveSessions(t *testing.T) {
	m := New(func() int { return 7 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "onevoice_sessions_active 7")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCallStart(false)
		m.RecordGoodbye()
		m.RecordCallEnd("completed")
		m.MonitorConnected()
	})
}
