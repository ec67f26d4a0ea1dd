package voice

import (
	"strconv"
	"time"

	"github.com/twilio/twilio-go/twiml"

	"github.com/onevoice/ivr/backend/internal/model/call"
)

// Renderer turns directives into TwiML.
type Renderer struct {
	Voice    string
	Language string
}

// Render builds the TwiML document for d. Spoken text goes inside the Gather
// so it can be interrupted; NoInputSpeak and Next run when the Gather times out.
func (r Renderer) Render(d call.Directive) (string, error) {
	var elements []twiml.Element

	if d.Lead != "" {
		elements = append(elements, r.say(d.Lead))
	}

	switch d.Input.Kind {
	case call.InputDigits, call.InputSpeech:
		gather := &twiml.VoiceGather{
			Action:   d.Input.Target,
			Method:   "POST",
			Timeout:  seconds(d.Input.Timeout),
			Language: r.Language,
		}
		if d.Input.Kind == call.InputDigits {
			gather.Input = "dtmf"
			gather.NumDigits = strconv.Itoa(d.Input.NumDigits)
		} else {
			gather.Input = "speech"
			gather.SpeechTimeout = d.Input.SpeechTimeout
		}
		if d.Speak != "" {
			gather.InnerElements = []twiml.Element{r.say(d.Speak)}
		}
		elements = append(elements, gather)
	default:
		if d.Speak != "" {
			elements = append(elements, r.say(d.Speak))
		}
	}

	if d.NoInputSpeak != "" {
		elements = append(elements, r.say(d.NoInputSpeak))
	}

	switch d.Next.Kind {
	case call.ActionRedirect:
		elements = append(elements, &twiml.VoiceRedirect{Url: d.Next.Path, Method: "POST"})
	case call.ActionHangup:
		elements = append(elements, &twiml.VoiceHangup{})
	}

	return twiml.Voice(elements)
}

func (r Renderer) say(text string) twiml.Element {
	return &twiml.VoiceSay{Message: text, Voice: r.Voice, Language: r.Language}
}

func seconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}
