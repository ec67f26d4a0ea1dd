package dialogue

import (
	"time"

	"github.com/onevoice/ivr/backend/internal/model/call"
)

// Webhook paths the directives point at.
const (
	PathVoice         = "/voice"
	PathMenuSelect    = "/menu-select"
	PathVoiceInput    = "/voice-input"
	PathProcessSpeech = "/process-speech"
	PathOutcome       = "/outcome"
	PathCallStatus    = "/call-status"
)

// Collection windows.
const (
	menuTimeout         = 5 * time.Second
	firstSpeechTimeout  = 8 * time.Second
	speechTimeout       = 10 * time.Second
	satisfactionTimeout = 5 * time.Second
)

// Spoken lines.
const (
	MenuGreeting = "Bună! Sunt OneVoice, asistentul tău vocal. " +
		"Apasă 1 pentru asistență dentară. " +
		"Apasă 2 pentru sfaturi agricole. " +
		"Sau rămâi pe linie și vorbește-mi direct."
	MenuRetry          = "Nu am înțeles. Hai să încercăm din nou."
	NothingHeard       = "Nu am auzit nimic. Poți să repeți?"
	Listening          = "Te ascult."
	ConnectionTrouble  = "Se pare că avem probleme cu conexiunea. Încearcă să suni din nou. La revedere!"
	NotUnderstood      = "Nu am înțeles. Poți să repeți te rog?"
	AnyMoreQuestions   = "Dacă mai ai întrebări, sună oricând. La revedere!"
	BackendApology     = "Îmi pare rău, am o problemă tehnică momentan. Te rog sună din nou în câteva minute."
	SatisfactionPrompt = "Mulțumesc că ai sunat! Dacă te-am ajutat, apasă 1. Dacă nu, apasă 2."
	ClosingPositive    = "Mă bucur că te-am putut ajuta! Sănătate și o zi frumoasă! La revedere!"
	ClosingNegative    = "Îmi pare rău că nu am fost de mai mult ajutor. Vom încerca să ne îmbunătățim. La revedere!"
	ClosingNoResponse  = "Mulțumesc că ai sunat! Sănătate și o zi frumoasă! La revedere!"
)

// ClosingLine picks the farewell for an outcome.
func ClosingLine(o call.Outcome) string {
	switch o {
	case call.OutcomePositive:
		return ClosingPositive
	case call.OutcomeNegative:
		return ClosingNegative
	default:
		return ClosingNoResponse
	}
}

// OutcomeFromDigit maps the satisfaction keypress to an outcome.
func OutcomeFromDigit(digits string) call.Outcome {
	switch digits {
	case "1":
		return call.OutcomePositive
	case "2":
		return call.OutcomeNegative
	default:
		return call.OutcomeNoResponse
	}
}

// ModeFromDigit maps the menu keypress to a mode.
func ModeFromDigit(digits string) (call.Mode, bool) {
	switch digits {
	case "1":
		return call.ModeDental, true
	case "2":
		return call.ModeAgri, true
	default:
		return call.ModeUnset, false
	}
}

// terminalStatuses are the provider call statuses after which no webhook follows.
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// IsTerminalStatus reports whether status ends the call.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}
