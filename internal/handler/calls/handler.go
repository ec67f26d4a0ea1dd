package calls

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/session"
	"github.com/onevoice/ivr/backend/pkg/utils"
)

// DefaultWindow bounds /calls when no since parameter is given.
const DefaultWindow = 24 * time.Hour

// Handler serves read-only views of live sessions and the call log.
type Handler struct {
	sessions *session.Store
	log      analytics.Store
	now      func() time.Time
}

// New creates the calls handler.
func New(sessions *session.Store, log analytics.Store) *Handler {
	return &Handler{
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the call inspection routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/calls", h.handleListCalls)
	r.Get("/calls/active", h.handleListActive)
	r.Get("/calls/{callID}", h.handleGetCall)
}

type activeView struct {
	ID           string     `json:"id"`
	From         string     `json:"from,omitempty"`
	Mode         call.Mode  `json:"mode"`
	State        call.State `json:"state"`
	TurnCount    int        `json:"turnCount"`
	MenuAttempts int        `json:"menuAttempts"`
	StartedAt    time.Time  `json:"startedAt"`
}

func toActiveView(s call.Session) activeView {
	return activeView{
		ID:           s.ID,
		From:         call.MaskPhone(s.From),
		Mode:         s.Mode,
		State:        s.State,
		TurnCount:    s.TurnCount,
		MenuAttempts: s.MenuAttempts,
		StartedAt:    s.StartedAt,
	}
}

// handleListCalls returns logged calls started after ?since= (RFC3339) or within the last day.
func (h *Handler) handleListCalls(w http.ResponseWriter, r *http.Request) {
	since := h.now().Add(-DefaultWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	records, err := h.log.ReadCallsSince(r.Context(), since)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read call log")
		utils.RespondError(w, http.StatusInternalServerError, "failed to read call log")
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if len(records) > limit {
			records = records[len(records)-limit:]
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"since": since,
		"calls": records,
	})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	views := make([]activeView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, toActiveView(s))
	}
	utils.RespondJSON(w, http.StatusOK, views)
}

// handleGetCall returns the live session, if any, and the logged transcript.
func (h *Handler) handleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	turns, err := h.log.Turns(r.Context(), callID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("call_sid", callID).Msg("failed to read transcript")
		utils.RespondError(w, http.StatusInternalServerError, "failed to read transcript")
		return
	}

	live, active := h.sessions.Peek(callID)
	if !active && len(turns) == 0 {
		utils.RespondError(w, http.StatusNotFound, "call not found")
		return
	}

	payload := map[string]any{
		"id":     callID,
		"active": active,
		"turns":  turns,
	}
	if active {
		payload["session"] = toActiveView(live)
	}
	utils.RespondJSON(w, http.StatusOK, payload)
}
