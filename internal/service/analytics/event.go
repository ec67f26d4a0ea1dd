package analytics

import (
	"context"
	"time"

	"github.com/onevoice/ivr/backend/internal/model/call"
)

// Store persists the call log. Implementations must be safe for use by one writer
// and concurrent readers.
type Store interface {
	LogCallStart(ctx context.Context, id, fromMasked string, mode call.Mode, at time.Time) error
	// ResetCall clears the mode, outcome, status and counters of a restarted call.
	// The start time and transcript are kept.
	ResetCall(ctx context.Context, id, fromMasked string, at time.Time) error
	LogTurn(ctx context.Context, turn call.TurnRecord) error
	LogCallEnd(ctx context.Context, id string, turnCount, durationSec int, status string, at time.Time) error
	LogOutcome(ctx context.Context, id string, outcome call.Outcome, at time.Time) error
	SetMode(ctx context.Context, id string, mode call.Mode, at time.Time) error
	ReadCallsSince(ctx context.Context, since time.Time) ([]call.Record, error)
	Turns(ctx context.Context, id string) ([]call.TurnRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// EventKind names a call log mutation.
type EventKind string

const (
	KindCallStart   EventKind = "call_start"
	KindCallRestart EventKind = "call_restart"
	KindTurn        EventKind = "turn"
	KindMode        EventKind = "mode"
	KindOutcome     EventKind = "outcome"
	KindCallEnd     EventKind = "call_end"
)

// Event is one queued call log mutation. It doubles as the monitor feed payload.
type Event struct {
	Kind        EventKind        `json:"kind"`
	CallID      string           `json:"callId"`
	At          time.Time        `json:"at"`
	From        string           `json:"from,omitempty"`
	Mode        call.Mode        `json:"mode,omitempty"`
	Turn        *call.TurnRecord `json:"turn,omitempty"`
	Outcome     call.Outcome     `json:"outcome,omitempty"`
	TurnCount   int              `json:"turnCount,omitempty"`
	DurationSec int              `json:"durationSec,omitempty"`
	Status      string           `json:"status,omitempty"`

	flushed chan struct{}
}

// CallStarted builds a call_start event. from is masked before it leaves the process.
func CallStarted(id, from string, mode call.Mode, at time.Time) Event {
	return Event{Kind: KindCallStart, CallID: id, From: call.MaskPhone(from), Mode: mode, At: at}
}

// CallRestarted builds a call_restart event for a call that went back to the menu.
func CallRestarted(id, from string, at time.Time) Event {
	return Event{Kind: KindCallRestart, CallID: id, From: call.MaskPhone(from), At: at}
}

// TurnLogged builds a turn event.
func TurnLogged(turn call.TurnRecord) Event {
	return Event{Kind: KindTurn, CallID: turn.CallID, Turn: &turn, At: turn.At}
}

// ModeSelected builds a mode event.
func ModeSelected(id string, mode call.Mode, at time.Time) Event {
	return Event{Kind: KindMode, CallID: id, Mode: mode, At: at}
}

// OutcomeRecorded builds an outcome event.
func OutcomeRecorded(id string, outcome call.Outcome, at time.Time) Event {
	return Event{Kind: KindOutcome, CallID: id, Outcome: outcome, At: at}
}

// CallEnded builds a call_end event.
func CallEnded(id string, turnCount, durationSec int, status string, at time.Time) Event {
	return Event{Kind: KindCallEnd, CallID: id, TurnCount: turnCount, DurationSec: durationSec, Status: status, At: at}
}
