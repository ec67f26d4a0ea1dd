package persona

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/model/persona"
	"github.com/onevoice/ivr/backend/internal/service/ai"
	"github.com/onevoice/ivr/backend/pkg/utils"
)

// Handler exposes the configured personas.
type Handler struct {
	personas persona.Store
	prompts  *ai.PersonaPromptManager
}

// New creates the persona handler.
func New(personas persona.Store, prompts *ai.PersonaPromptManager) *Handler {
	return &Handler{
		personas: personas,
		prompts:  prompts,
	}
}

// RegisterRoutes mounts the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{mode}", h.handleGetPersona)
}

type personaView struct {
	persona.Persona
	SystemPrompt string    `json:"systemPrompt"`
	ResolvedAt   time.Time `json:"resolvedAt"`
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

// handleGetPersona returns one persona with its resolved instruction.
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	mode := call.Mode(chi.URLParam(r, "mode"))
	p, ok := h.personas.FindByMode(mode)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "unknown mode")
		return
	}

	template, err := h.prompts.GetPromptTemplate(mode)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, personaView{
		Persona:      p,
		SystemPrompt: template.SystemPrompt,
		ResolvedAt:   h.prompts.ResolvedAt(),
	})
}
