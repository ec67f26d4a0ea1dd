package call

import "time"

// Mode selects the assistant persona for a call.
type Mode string

const (
	ModeUnset  Mode = ""
	ModeDental Mode = "dental"
	ModeAgri   Mode = "agri"
)

// DefaultMode is used when the caller never picks a menu option.
const DefaultMode = ModeDental

// Valid reports whether m names a selectable persona.
func (m Mode) Valid() bool {
	return m == ModeDental || m == ModeAgri
}

// State is the dialogue position of a call.
type State string

const (
	StateMenuPending     State = "menu_pending"
	StateModeSelected    State = "mode_selected"
	StateConversing      State = "conversing"
	StateAwaitingOutcome State = "awaiting_outcome"
	StateClosed          State = "closed"
)

// Outcome is the caller-reported satisfaction signal.
type Outcome string

const (
	OutcomePositive   Outcome = "positive"
	OutcomeNegative   Outcome = "negative"
	OutcomeNoResponse Outcome = "noResponse"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the call transcript.
type Turn struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence *float64  `json:"confidence,omitempty"`
	LatencyMs  *int64    `json:"latencyMs,omitempty"`
}

// Session captures the conversation state of one phone call.
type Session struct {
	ID           string    `json:"id"`
	From         string    `json:"from,omitempty"`
	Mode         Mode      `json:"mode"`
	State        State     `json:"state"`
	History      []Turn    `json:"history"`
	TurnCount    int       `json:"turnCount"`
	MenuAttempts int       `json:"menuAttempts"`
	StartedAt    time.Time `json:"startedAt"`
	Outcome      *Outcome  `json:"outcome,omitempty"`
}

// NewSession returns a session in the initial menu state.
func NewSession(id string, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateMenuPending,
		History:   make([]Turn, 0, 16),
		StartedAt: startedAt,
	}
}

// Reset returns the session to the menu while keeping its identity and start time.
func (s *Session) Reset() {
	s.Mode = ModeUnset
	s.State = StateMenuPending
	s.History = s.History[:0]
	s.TurnCount = 0
	s.MenuAttempts = 0
	s.Outcome = nil
}

// Append records a turn in the full transcript.
func (s *Session) Append(turn Turn) {
	s.History = append(s.History, turn)
}

// Window returns a copy of the most recent n turns in chronological order.
func (s *Session) Window(n int) []Turn {
	start := 0
	if n > 0 && len(s.History) > n {
		start = len(s.History) - n
	}
	window := make([]Turn, len(s.History)-start)
	copy(window, s.History[start:])
	return window
}

// SetOutcome overwrites the outcome; the last write wins.
func (s *Session) SetOutcome(o Outcome) {
	s.Outcome = &o
}

// Snapshot returns a deep copy safe to hand to readers outside the session lock.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.History = append([]Turn(nil), s.History...)
	if s.Outcome != nil {
		o := *s.Outcome
		cp.Outcome = &o
	}
	return cp
}
