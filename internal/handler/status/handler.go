package status

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/outcome"
	"github.com/onevoice/ivr/backend/pkg/utils"
)

// Version is stamped at build time with -ldflags "-X .../status.Version=...".
var Version = "dev"

// ServiceName is reported by the root endpoint.
const ServiceName = "onevoice-ivr"

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves liveness, service info and daily statistics.
type Handler struct {
	tracker   *outcome.Tracker
	active    func() int
	checks    map[string]Pinger
	startedAt time.Time
	now       func() time.Time
}

// New creates the status handler. checks are named dependencies checked by /health.
func New(tracker *outcome.Tracker, active func() int, checks map[string]Pinger) *Handler {
	return &Handler{
		tracker:   tracker,
		active:    active,
		checks:    checks,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// RegisterRoutes mounts the root and health endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleInfo)
	r.Get("/health", h.handleHealth)
}

// RegisterAPIRoutes mounts the statistics endpoints under /api.
func (h *Handler) RegisterAPIRoutes(r chi.Router) {
	r.Get("/stats/daily", h.handleDailyStats)
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"name":        ServiceName,
		"version":     Version,
		"modes":       []call.Mode{call.ModeDental, call.ModeAgri},
		"activeCalls": h.active(),
		"uptime":      h.now().Sub(h.startedAt).Round(time.Second).String(),
	})
}

// handleHealth reports 503 when any dependency fails its ping.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("dependency", name).Msg("health check failed")
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	utils.RespondJSON(w, code, map[string]any{
		"status":       status,
		"dependencies": results,
		"activeCalls":  h.active(),
	})
}

// handleDailyStats aggregates one day, ?date=YYYY-MM-DD, defaulting to today.
func (h *Handler) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	day := h.tracker.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(outcome.DateLayout, raw, day.Location())
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	aggregate, err := h.tracker.ComputeDailyAggregate(r.Context(), day)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to compute daily aggregate")
		utils.RespondError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	utils.RespondJSON(w, http.StatusOK, aggregate)
}
