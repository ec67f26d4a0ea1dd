package persona

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/persona"
	"github.com/onevoice/ivr/backend/internal/service/ai"
)

func setupRouter() *chi.Mux {
	store := persona.NewMemoryStore(persona.Seed())
	prompts := ai.NewPersonaPromptManager(store, time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC))

	r := chi.NewRouter()
	New(store, prompts).RegisterRoutes(r)
	return r
}

func TestListPersonas(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/personas", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &items))
	require.Len(t, items, 2)
	for _, item := range items {
		assert.NotContains(t, item, "Instruction")
	}
}

func TestGetPersonaResolvesInstruction(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/personas/agri", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var view struct {
		Mode         string `json:"mode"`
		SystemPrompt string `json:"systemPrompt"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, "agri", view.Mode)
	assert.NotEmpty(t, view.SystemPrompt)
	assert.NotContains(t, view.SystemPrompt, "{{")
}

func TestGetPersonaUnknownMode(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/personas/legal", nil))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
