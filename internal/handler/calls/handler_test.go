package calls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/session"
)

var fixedNow = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T) (*chi.Mux, *session.Store, *analytics.MemoryStore) {
	t.Helper()
	sessions := session.NewStore(time.Hour, session.WithClock(func() time.Time { return fixedNow }))
	log := analytics.NewMemoryStore()
	h := New(sessions, log)
	h.now = func() time.Time { return fixedNow }

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, sessions, log
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestListActiveMasksCaller(t *testing.T) {
	r, sessions, _ := setupRouter(t)
	handle := sessions.Acquire("CA1")
	handle.Session.From = "+40712345678"
	handle.Session.Mode = call.ModeAgri
	handle.Release()

	resp := get(r, "/calls/active")

	require.Equal(t, http.StatusOK, resp.Code)
	var views []activeView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "CA1", views[0].ID)
	assert.Equal(t, "+40******678", views[0].From)
	assert.Equal(t, call.ModeAgri, views[0].Mode)
}

func TestListCallsDefaultsToLastDay(t *testing.T) {
	r, _, log := setupRouter(t)
	ctx := context.Background()
	require.NoError(t, log.LogCallStart(ctx, "old", "", call.ModeDental, fixedNow.Add(-48*time.Hour)))
	require.NoError(t, log.LogCallStart(ctx, "recent", "", call.ModeDental, fixedNow.Add(-time.Hour)))

	resp := get(r, "/calls")

	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Calls []call.Record `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Calls, 1)
	assert.Equal(t, "recent", payload.Calls[0].ID)
}

func TestListCallsRejectsBadParams(t *testing.T) {
	r, _, _ := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, get(r, "/calls?since=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/calls?limit=0").Code)
}

func TestGetCallReturnsTranscript(t *testing.T) {
	r, _, log := setupRouter(t)
	ctx := context.Background()
	require.NoError(t, log.LogCallStart(ctx, "CA2", "", call.ModeDental, fixedNow))
	require.NoError(t, log.LogTurn(ctx, call.TurnRecord{CallID: "CA2", Number: 1, Role: call.RoleUser, Text: "salut", At: fixedNow}))

	resp := get(r, "/calls/CA2")

	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Active bool              `json:"active"`
		Turns  []call.TurnRecord `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.False(t, payload.Active)
	require.Len(t, payload.Turns, 1)
	assert.Equal(t, "salut", payload.Turns[0].Text)
}

func TestGetCallUnknown(t *testing.T) {
	r, _, _ := setupRouter(t)

	assert.Equal(t, http.StatusNotFound, get(r, "/calls/nope").Code)
}
