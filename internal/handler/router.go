package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/handler/calls"
	"github.com/onevoice/ivr/backend/internal/handler/monitor"
	"github.com/onevoice/ivr/backend/internal/handler/persona"
	"github.com/onevoice/ivr/backend/internal/handler/status"
	"github.com/onevoice/ivr/backend/internal/handler/voice"
	middlewarePkg "github.com/onevoice/ivr/backend/internal/middleware"
	personaModel "github.com/onevoice/ivr/backend/internal/model/persona"
	"github.com/onevoice/ivr/backend/internal/service/ai"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/metrics"
	"github.com/onevoice/ivr/backend/internal/service/outcome"
	"github.com/onevoice/ivr/backend/internal/service/session"
)

// Deps carries the services the HTTP layer routes to.
type Deps struct {
	Logger   zerolog.Logger
	Dialogue voice.Dialogue
	Renderer voice.Renderer
	// Verifier is nil when webhook signatures are not enforced.
	Verifier *voice.SignatureVerifier
	Sessions *session.Store
	CallLog  analytics.Store
	Tracker  *outcome.Tracker
	Personas personaModel.Store
	Prompts  *ai.PersonaPromptManager
	Metrics  *metrics.Metrics
	Monitor  *monitor.Hub
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	statusHandler := status.New(d.Tracker, d.Sessions.Count, map[string]status.Pinger{
		"analytics": d.CallLog,
		"sessions":  d.Sessions,
	})
	statusHandler.RegisterRoutes(r)

	// Twilio webhooks
	voice.New(d.Dialogue, d.Renderer, d.Verifier).RegisterRoutes(r)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	if d.Monitor != nil {
		d.Monitor.RegisterRoutes(r)
	}

	r.Route("/api", func(api chi.Router) {
		persona.New(d.Personas, d.Prompts).RegisterRoutes(api)
		calls.New(d.Sessions, d.CallLog).RegisterRoutes(api)
		statusHandler.RegisterAPIRoutes(api)
	})

	return r
}
