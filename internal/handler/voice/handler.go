package voice

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/dialogue"
	"github.com/onevoice/ivr/backend/pkg/utils"
)

// Dialogue decides the response to one webhook.
type Dialogue interface {
	Handle(ctx context.Context, ev call.Event) call.Directive
}

// Handler is the Twilio voice webhook transport.
type Handler struct {
	dialogue Dialogue
	renderer Renderer
	verifier *SignatureVerifier
}

// New creates the webhook handler. verifier may be nil to accept unsigned requests.
func New(d Dialogue, renderer Renderer, verifier *SignatureVerifier) *Handler {
	return &Handler{dialogue: d, renderer: renderer, verifier: verifier}
}

// RegisterRoutes mounts the webhook endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.verifier != nil {
			r.Use(h.verifier.Middleware)
		}
		r.Post(dialogue.PathVoice, h.handle(call.EventStart))
		r.Post(dialogue.PathMenuSelect, h.handle(call.EventDigit))
		r.Post(dialogue.PathVoiceInput, h.handle(call.EventListen))
		r.Post(dialogue.PathProcessSpeech, h.handle(call.EventSpeech))
		r.Post(dialogue.PathOutcome, h.handle(call.EventOutcome))
		r.Post(dialogue.PathCallStatus, h.handle(call.EventStatus))
	})
}

func (h *Handler) handle(kind call.EventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid form body")
			return
		}

		ev, ok := decodeEvent(kind, r)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "CallSid is required")
			return
		}

		logger := zerolog.Ctx(r.Context()).With().Str("call_sid", ev.CallID).Logger()
		ctx := logger.WithContext(r.Context())

		directive := h.dialogue.Handle(ctx, ev)

		body, err := h.renderer.Render(directive)
		if err != nil {
			logger.Error().Err(err).Msg("failed to render twiml")
			utils.RespondError(w, http.StatusInternalServerError, "render failed")
			return
		}
		utils.RespondXML(w, http.StatusOK, body)
	}
}

func decodeEvent(kind call.EventKind, r *http.Request) (call.Event, bool) {
	form := r.PostForm
	ev := call.Event{
		CallID: strings.TrimSpace(form.Get("CallSid")),
		Kind:   kind,
		From:   form.Get("From"),
	}
	if ev.CallID == "" {
		return ev, false
	}

	switch kind {
	case call.EventDigit, call.EventOutcome:
		ev.Payload = form.Get("Digits")
	case call.EventSpeech:
		ev.Payload = form.Get("SpeechResult")
		if v, err := strconv.ParseFloat(form.Get("Confidence"), 64); err == nil {
			ev.Confidence = &v
		}
	case call.EventStatus:
		ev.Status = form.Get("CallStatus")
		if v, err := strconv.Atoi(form.Get("CallDuration")); err == nil {
			ev.Duration = &v
		}
	}
	return ev, true
}
