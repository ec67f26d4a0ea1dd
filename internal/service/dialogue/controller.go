package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/analysis/intent"
	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/ai"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/metrics"
	"github.com/onevoice/ivr/backend/internal/service/outcome"
	"github.com/onevoice/ivr/backend/internal/service/session"
)

// PersonaResolver supplies the instruction and greeting of a mode.
type PersonaResolver interface {
	Resolve(mode call.Mode) string
	Greeting(mode call.Mode) string
}

// Publisher accepts call log events without blocking the dialogue.
type Publisher interface {
	Publish(analytics.Event)
}

// Settings tunes the state machine.
type Settings struct {
	HistoryLimit   int
	MenuMaxRetries int
	BackendTimeout time.Duration
}

// Controller is the per-call dialogue state machine. It holds no state of its
// own between webhooks; everything lives in the session store.
type Controller struct {
	sessions *session.Store
	personas PersonaResolver
	backend  ai.Backend
	tracker  *outcome.Tracker
	events   Publisher
	metrics  *metrics.Metrics
	settings Settings
	now      func() time.Time
	logger   zerolog.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithMetrics records dialogue metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController wires the controller to its collaborators.
func NewController(
	sessions *session.Store,
	personas PersonaResolver,
	backend ai.Backend,
	tracker *outcome.Tracker,
	events Publisher,
	settings Settings,
	opts ...Option,
) *Controller {
	if settings.HistoryLimit < 1 || settings.HistoryLimit > ai.HistoryLimit {
		settings.HistoryLimit = ai.HistoryLimit
	}
	if settings.BackendTimeout <= 0 {
		settings.BackendTimeout = 10 * time.Second
	}
	c := &Controller{
		sessions: sessions,
		personas: personas,
		backend:  backend,
		tracker:  tracker,
		events:   events,
		settings: settings,
		now:      time.Now,
		logger:   logging.Component("dialogue"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one webhook event to completion and returns what to render.
func (c *Controller) Handle(ctx context.Context, ev call.Event) call.Directive {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &c.logger
	}
	log := logger.With().Str("call_sid", ev.CallID).Str("event", string(ev.Kind)).Logger()

	switch ev.Kind {
	case call.EventStart:
		return c.start(ev, log)
	case call.EventDigit:
		return c.menuSelect(ev, log)
	case call.EventListen:
		return c.listen(ev, log)
	case call.EventSpeech:
		return c.speech(ctx, ev, log)
	case call.EventOutcome:
		return c.outcome(ctx, ev, log)
	case call.EventStatus:
		c.status(ev, log)
		return call.Directive{}
	default:
		log.Warn().Msg("unknown event kind")
		return call.Directive{Speak: BackendApology, Next: call.Hangup()}
	}
}

func (c *Controller) start(ev call.Event, log zerolog.Logger) call.Directive {
	h := c.sessions.Acquire(ev.CallID)
	defer h.Release()

	s := h.Session
	restart := !h.Created() && s.State != call.StateMenuPending
	if restart {
		s.Reset()
	}
	if ev.From != "" {
		s.From = call.MaskPhone(ev.From)
	}
	if restart {
		c.events.Publish(analytics.CallRestarted(s.ID, ev.From, c.now().UTC()))
	} else if h.Created() {
		c.events.Publish(analytics.CallStarted(s.ID, ev.From, call.ModeUnset, s.StartedAt))
	}
	if h.Created() || restart {
		c.metrics.RecordCallStart(restart)
		log.Info().Str("from", s.From).Bool("restart", restart).Msg("incoming call")
	}

	return menuDirective("")
}

// acquire locks the session of a mid-call event. A session created here means the
// call skipped /voice or was swept; it is logged as a new call.
func (c *Controller) acquire(ev call.Event, log zerolog.Logger) *session.Handle {
	h := c.sessions.Acquire(ev.CallID)
	if h.Created() {
		if ev.From != "" {
			h.Session.From = call.MaskPhone(ev.From)
		}
		c.events.Publish(analytics.CallStarted(ev.CallID, ev.From, call.ModeUnset, h.Session.StartedAt))
		log.Info().Msg("session created mid-call")
	}
	return h
}

func (c *Controller) menuSelect(ev call.Event, log zerolog.Logger) call.Directive {
	h := c.acquire(ev, log)
	defer h.Release()
	s := h.Session

	if s.State != call.StateMenuPending && s.Mode.Valid() {
		// duplicate delivery; mode is immutable once chosen
		return c.modeGreeting(s.Mode)
	}

	mode, ok := ModeFromDigit(strings.TrimSpace(ev.Payload))
	if !ok {
		s.MenuAttempts++
		if limit := c.settings.MenuMaxRetries; limit == 0 || s.MenuAttempts < limit {
			c.metrics.RecordMenuChoice("invalid")
			log.Info().Str("digits", ev.Payload).Int("attempt", s.MenuAttempts).Msg("invalid menu input")
			return menuDirective(MenuRetry)
		}
		mode = call.DefaultMode
		c.metrics.RecordMenuChoice("fallback")
		log.Info().Int("attempts", s.MenuAttempts).Msg("menu retries exhausted, using default mode")
	} else {
		c.metrics.RecordMenuChoice(string(mode))
	}

	s.Mode = mode
	s.State = call.StateModeSelected
	c.events.Publish(analytics.ModeSelected(s.ID, mode, c.now().UTC()))
	log.Info().Str("mode", string(mode)).Msg("mode selected")

	return c.modeGreeting(mode)
}

func (c *Controller) modeGreeting(mode call.Mode) call.Directive {
	return call.Directive{
		Speak:        c.personas.Greeting(mode),
		Input:        call.SpeechInput(firstSpeechTimeout, PathProcessSpeech),
		NoInputSpeak: NothingHeard,
		Next:         call.Redirect(PathVoiceInput),
	}
}

func (c *Controller) listen(ev call.Event, log zerolog.Logger) call.Directive {
	h := c.acquire(ev, log)
	defer h.Release()

	if c.enterConversation(h.Session) {
		log.Info().Str("mode", string(h.Session.Mode)).Msg("no menu choice, using default mode")
	}
	return listenDirective()
}

// enterConversation resolves an unset mode to the default and moves the call to Conversing.
// It reports whether the default was applied.
func (c *Controller) enterConversation(s *call.Session) bool {
	defaulted := false
	if !s.Mode.Valid() {
		s.Mode = call.DefaultMode
		defaulted = true
		c.events.Publish(analytics.ModeSelected(s.ID, s.Mode, c.now().UTC()))
	}
	if s.State == call.StateMenuPending || s.State == call.StateModeSelected {
		s.State = call.StateConversing
	}
	return defaulted
}

func (c *Controller) speech(ctx context.Context, ev call.Event, log zerolog.Logger) call.Directive {
	h := c.acquire(ev, log)
	defer h.Release()
	s := h.Session

	if s.State == call.StateAwaitingOutcome {
		return satisfactionDirective()
	}

	transcript := strings.TrimSpace(ev.Payload)
	decision := intent.Analyze(transcript)

	switch decision.Intent {
	case intent.Empty:
		log.Debug().Err(ErrInputAbsent).Msg("re-prompting")
		return call.Directive{Speak: NotUnderstood, Next: call.Redirect(PathVoiceInput)}

	case intent.Goodbye:
		c.enterConversation(s)
		s.State = call.StateAwaitingOutcome
		s.SetOutcome(call.OutcomeNoResponse)
		// counted at finalize unless a digit replaces it
		c.tracker.SeedOutcome(ctx, s.ID, call.OutcomeNoResponse)
		c.metrics.RecordGoodbye()
		log.Info().Err(ErrGoodbyeDetected).Str("matched", decision.Matched).Msg("caller said goodbye")
		return satisfactionDirective()
	}

	c.enterConversation(s)
	s.TurnCount++
	turnNumber := s.TurnCount
	userTurn := call.Turn{Role: call.RoleUser, Text: transcript, Timestamp: c.now().UTC(), Confidence: ev.Confidence}
	s.Append(userTurn)
	c.events.Publish(analytics.TurnLogged(call.TurnRecord{
		CallID: s.ID, Number: turnNumber, Role: call.RoleUser, Text: transcript,
		Confidence: ev.Confidence, Urgent: decision.Urgent, At: userTurn.Timestamp,
	}))
	c.metrics.RecordTurn(string(s.Mode), decision.Urgent)
	if decision.Urgent {
		log.Warn().Int("turn", turnNumber).Msg("urgent cue in caller speech")
	}

	req := ai.Request{
		SystemInstruction: c.personas.Resolve(s.Mode),
		History:           s.Window(c.settings.HistoryLimit),
	}

	started := c.now()
	reply, err := c.generate(ctx, req)
	elapsed := c.now().Sub(started)
	c.metrics.RecordBackend(elapsed, err)

	if !h.Live() {
		log.Info().Msg("session ended during backend call, reply discarded")
		return call.Directive{Next: call.Hangup()}
	}

	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Int("turn", turnNumber).Msg("backend failed, ending call")
		c.finalize(h, call.StatusBackendFailure, 0)
		return call.Directive{Speak: BackendApology, Next: call.Hangup()}
	}

	latency := elapsed.Milliseconds()
	assistantTurn := call.Turn{Role: call.RoleAssistant, Text: reply.Text, Timestamp: c.now().UTC(), LatencyMs: &latency}
	s.Append(assistantTurn)
	c.events.Publish(analytics.TurnLogged(call.TurnRecord{
		CallID: s.ID, Number: turnNumber, Role: call.RoleAssistant, Text: reply.Text,
		LatencyMs: &latency, At: assistantTurn.Timestamp,
	}))
	log.Info().Int("turn", turnNumber).Int64("latency_ms", latency).Msg("reply generated")

	return call.Directive{
		Speak:        reply.Text,
		Input:        call.SpeechInput(speechTimeout, PathProcessSpeech),
		NoInputSpeak: AnyMoreQuestions,
		Next:         call.Hangup(),
	}
}

func (c *Controller) generate(ctx context.Context, req ai.Request) (ai.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.BackendTimeout)
	defer cancel()

	reply, err := c.backend.Generate(ctx, req)
	if err != nil {
		return ai.Reply{}, fmt.Errorf("%w: %w", ErrBackendFailure, err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return ai.Reply{}, fmt.Errorf("%w: %w", ErrBackendFailure, ai.ErrEmptyReply)
	}
	return reply, nil
}

func (c *Controller) outcome(ctx context.Context, ev call.Event, log zerolog.Logger) call.Directive {
	category := OutcomeFromDigit(strings.TrimSpace(ev.Payload))

	h, ok := c.sessions.Lookup(ev.CallID)
	if !ok {
		// session already swept or hung up; the digit still counts
		c.tracker.RecordOutcome(ctx, ev.CallID, category)
		return call.Directive{Speak: ClosingLine(category), Next: call.Hangup()}
	}
	defer h.Release()

	if h.Session.State != call.StateAwaitingOutcome {
		log.Warn().Str("state", string(h.Session.State)).Msg("outcome digit outside satisfaction prompt")
	}
	h.Session.SetOutcome(category)
	h.Session.State = call.StateClosed
	c.tracker.RecordOutcome(ctx, h.Session.ID, category)
	c.finalize(h, call.StatusCompleted, 0)

	return call.Directive{Speak: ClosingLine(category), Next: call.Hangup()}
}

func (c *Controller) status(ev call.Event, log zerolog.Logger) {
	duration := 0
	if ev.Duration != nil {
		duration = *ev.Duration
	}
	log.Info().Str("status", ev.Status).Int("duration_sec", duration).Msg("call status")

	if !IsTerminalStatus(ev.Status) {
		return
	}

	// never wait on the session lock: a webhook may be blocked on the backend
	h, exists := c.sessions.TryLookup(ev.CallID)
	if h == nil {
		if exists {
			c.sessions.Delete(ev.CallID)
			c.metrics.RecordCallEnd(ev.Status)
			log.Info().Msg("session busy, removed without waiting")
		}
		c.events.Publish(analytics.CallEnded(ev.CallID, 0, duration, ev.Status, c.now().UTC()))
		return
	}
	defer h.Release()
	c.finalize(h, ev.Status, duration)
}

// finalize closes the call, logs its end and removes the session. Must hold h.
func (c *Controller) finalize(h *session.Handle, status string, durationSec int) {
	s := h.Session
	now := c.now().UTC()
	if durationSec <= 0 {
		durationSec = int(now.Sub(s.StartedAt).Seconds())
	}
	if s.State == call.StateAwaitingOutcome && s.Outcome != nil {
		// caller left at the satisfaction prompt; the seeded outcome is final
		c.tracker.CountOutcome(*s.Outcome)
	}
	s.State = call.StateClosed

	c.events.Publish(analytics.CallEnded(s.ID, s.TurnCount, durationSec, status, now))
	c.metrics.RecordCallEnd(status)
	c.sessions.Delete(s.ID)
}

func menuDirective(lead string) call.Directive {
	return call.Directive{
		Lead:  lead,
		Speak: MenuGreeting,
		Input: call.DigitsInput(1, menuTimeout, PathMenuSelect),
		Next:  call.Redirect(PathVoiceInput),
	}
}

func listenDirective() call.Directive {
	return call.Directive{
		Speak:        Listening,
		Input:        call.SpeechInput(speechTimeout, PathProcessSpeech),
		NoInputSpeak: ConnectionTrouble,
		Next:         call.Hangup(),
	}
}

func satisfactionDirective() call.Directive {
	return call.Directive{
		Speak:        SatisfactionPrompt,
		Input:        call.DigitsInput(1, satisfactionTimeout, PathOutcome),
		NoInputSpeak: ClosingNoResponse,
		Next:         call.Hangup(),
	}
}
