package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/outcome"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var fixedNow = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T, checks map[string]Pinger) (*chi.Mux, *analytics.Sink) {
	t.Helper()
	sink := analytics.NewSink(analytics.NewMemoryStore(), 16)
	t.Cleanup(func() { _ = sink.Close() })
	tracker := outcome.NewTracker(sink, nil, outcome.WithClock(func() time.Time { return fixedNow }))

	h := New(tracker, func() int { return 3 }, checks)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Route("/api", h.RegisterAPIRoutes)
	return r, sink
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestInfoEndpoint(t *testing.T) {
	r, _ := setupRouter(t, nil)

	resp := get(r, "/")

	require.Equal(t, http.StatusOK, resp.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, ServiceName, payload["name"])
	assert.Equal(t, float64(3), payload["activeCalls"])
	assert.ElementsMatch(t, []any{"dental", "agri"}, payload["modes"])
}

func TestHealthReportsFailingDependency(t *testing.T) {
	r, _ := setupRouter(t, map[string]Pinger{
		"analytics": pingFunc(func(context.Context) error { return nil }),
		"redis":     pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	resp := get(r, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var payload struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, "degraded", payload.Status)
	assert.Equal(t, "ok", payload.Dependencies["analytics"])
	assert.Equal(t, "connection refused", payload.Dependencies["redis"])
}

func TestHealthOK(t *testing.T) {
	r, _ := setupRouter(t, nil)

	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
}

func TestDailyStats(t *testing.T) {
	r, sink := setupRouter(t, nil)
	sink.Publish(analytics.CallStarted("CA1", "", call.ModeDental, fixedNow))
	sink.Publish(analytics.CallEnded("CA1", 2, 60, call.StatusCompleted, fixedNow.Add(time.Minute)))

	resp := get(r, "/api/stats/daily?date=2026-10-18")

	require.Equal(t, http.StatusOK, resp.Code)
	var agg call.DailyAggregate
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &agg))
	assert.Equal(t, "2026-10-18", agg.Date)
	assert.Equal(t, 1, agg.TotalCalls)
	assert.Equal(t, 1, agg.CallsByMode[call.ModeDental])
	assert.InDelta(t, 2.0, agg.AvgTurns, 1e-9)
	assert.InDelta(t, 60.0, agg.AvgDurationSec, 1e-9)
}

func TestDailyStatsRejectsBadDate(t *testing.T) {
	r, _ := setupRouter(t, nil)

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/stats/daily?date=18.10.2026").Code)
}
