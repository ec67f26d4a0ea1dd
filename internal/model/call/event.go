package call

import "time"

// EventKind enumerates the inbound webhook types.
type EventKind string

const (
	EventStart   EventKind = "start"
	EventDigit   EventKind = "digit"
	EventListen  EventKind = "listen"
	EventSpeech  EventKind = "speech"
	EventOutcome EventKind = "outcome"
	EventStatus  EventKind = "status"
)

// Event is a decoded webhook handed to the dialogue controller.
type Event struct {
	CallID     string
	Kind       EventKind
	Payload    string
	From       string
	Confidence *float64
	Status     string
	Duration   *int
}

// InputKind is the kind of caller input to collect after speaking.
// The zero value collects nothing.
type InputKind string

const (
	InputNone   InputKind = ""
	InputDigits InputKind = "digits"
	InputSpeech InputKind = "speech"
)

// Input describes a collection window.
type Input struct {
	Kind          InputKind
	NumDigits     int
	Timeout       time.Duration
	SpeechTimeout string
	// Target is the webhook path the collected input is posted to.
	Target string
}

// ActionKind is what the transport does once speaking and collection are over.
// The zero value does nothing further.
type ActionKind string

const (
	ActionContinue ActionKind = ""
	ActionRedirect ActionKind = "redirect"
	ActionHangup   ActionKind = "hangup"
)

// Action is the follow-up step of a directive.
type Action struct {
	Kind ActionKind
	Path string
}

// Directive is the controller's decision for one webhook.
type Directive struct {
	// Lead is spoken before Speak, outside the collection window.
	Lead  string
	Speak string
	Input Input
	// NoInputSpeak is spoken before Next when the collection window yields nothing.
	NoInputSpeak string
	Next         Action
}

// Ends reports whether the directive terminates the call once rendered.
func (d Directive) Ends() bool {
	return d.Input.Kind == InputNone && d.Next.Kind == ActionHangup
}

// DigitsInput collects count DTMF digits.
func DigitsInput(count int, timeout time.Duration, target string) Input {
	return Input{Kind: InputDigits, NumDigits: count, Timeout: timeout, Target: target}
}

// SpeechInput opens a speech window with automatic end-of-speech detection.
func SpeechInput(timeout time.Duration, target string) Input {
	return Input{Kind: InputSpeech, Timeout: timeout, SpeechTimeout: "auto", Target: target}
}

// Hangup ends the call.
func Hangup() Action { return Action{Kind: ActionHangup} }

// Redirect sends the call to another webhook path.
func Redirect(path string) Action { return Action{Kind: ActionRedirect, Path: path} }
