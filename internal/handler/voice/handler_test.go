package voice

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/dialogue"
)

type recordingDialogue struct {
	mu        sync.Mutex
	events    []call.Event
	directive call.Directive
}

func (d *recordingDialogue) Handle(_ context.Context, ev call.Event) call.Directive {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.directive
}

func (d *recordingDialogue) last(t *testing.T) call.Event {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.events)
	return d.events[len(d.events)-1]
}

var testRenderer = Renderer{Voice: "Polly.Carmen-Neural", Language: "ro-RO"}

func setupRouter(d Dialogue, verifier *SignatureVerifier) *chi.Mux {
	r := chi.NewRouter()
	New(d, testRenderer, verifier).RegisterRoutes(r)
	return r
}

func postForm(r http.Handler, path string, form url.Values, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestStartWebhookRendersMenuGather(t *testing.T) {
	d := &recordingDialogue{directive: call.Directive{
		Speak:        "Press one or two",
		Input:        call.DigitsInput(1, 5*time.Second, dialogue.PathMenuSelect),
		NoInputSpeak: "Nothing heard",
		Next:         call.Redirect(dialogue.PathVoice),
	}}
	r := setupRouter(d, nil)

	resp := postForm(r, dialogue.PathVoice, url.Values{"CallSid": {"CA1"}, "From": {"+40712345678"}}, "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/xml")

	body := resp.Body.String()
	assert.Contains(t, body, "<Response>")
	assert.Contains(t, body, "<Gather")
	assert.Contains(t, body, `action="/menu-select"`)
	assert.Contains(t, body, `input="dtmf"`)
	assert.Contains(t, body, `numDigits="1"`)
	assert.Contains(t, body, `timeout="5"`)
	assert.Contains(t, body, `voice="Polly.Carmen-Neural"`)
	assert.Contains(t, body, "Press one or two")
	assert.Contains(t, body, "<Redirect")
	assert.Less(t, strings.Index(body, "Press one or two"), strings.Index(body, "Nothing heard"))

	ev := d.last(t)
	assert.Equal(t, call.EventStart, ev.Kind)
	assert.Equal(t, "CA1", ev.CallID)
	assert.Equal(t, "+40712345678", ev.From)
}

func TestSpeechWebhookDecodesTranscript(t *testing.T) {
	d := &recordingDialogue{directive: call.Directive{
		Speak:        "Reply",
		Input:        call.SpeechInput(10*time.Second, dialogue.PathProcessSpeech),
		NoInputSpeak: "Anything else",
		Next:         call.Hangup(),
	}}
	r := setupRouter(d, nil)

	resp := postForm(r, dialogue.PathProcessSpeech, url.Values{
		"CallSid":      {"CA2"},
		"SpeechResult": {"am o durere de masea"},
		"Confidence":   {"0.91"},
	}, "")

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `input="speech"`)
	assert.Contains(t, body, `speechTimeout="auto"`)
	assert.Contains(t, body, `language="ro-RO"`)
	assert.Contains(t, body, "<Hangup")

	ev := d.last(t)
	assert.Equal(t, call.EventSpeech, ev.Kind)
	assert.Equal(t, "am o durere de masea", ev.Payload)
	require.NotNil(t, ev.Confidence)
	assert.InDelta(t, 0.91, *ev.Confidence, 1e-9)
}

func TestDigitAndOutcomeWebhooksCarryDigits(t *testing.T) {
	d := &recordingDialogue{directive: call.Directive{Speak: "ok", Next: call.Hangup()}}
	r := setupRouter(d, nil)

	resp := postForm(r, dialogue.PathMenuSelect, url.Values{"CallSid": {"CA3"}, "Digits": {"2"}}, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, call.EventDigit, d.last(t).Kind)
	assert.Equal(t, "2", d.last(t).Payload)

	resp = postForm(r, dialogue.PathOutcome, url.Values{"CallSid": {"CA3"}, "Digits": {"1"}}, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, call.EventOutcome, d.last(t).Kind)
	assert.Equal(t, "1", d.last(t).Payload)
}

func TestStatusWebhookDecodesDuration(t *testing.T) {
	d := &recordingDialogue{}
	r := setupRouter(d, nil)

	resp := postForm(r, dialogue.PathCallStatus, url.Values{
		"CallSid":      {"CA4"},
		"CallStatus":   {"completed"},
		"CallDuration": {"42"},
	}, "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "<Response")

	ev := d.last(t)
	assert.Equal(t, call.EventStatus, ev.Kind)
	assert.Equal(t, "completed", ev.Status)
	require.NotNil(t, ev.Duration)
	assert.Equal(t, 42, *ev.Duration)
}

func TestListenWebhookMapsToListenEvent(t *testing.T) {
	d := &recordingDialogue{directive: call.Directive{Speak: "listening", Input: call.SpeechInput(8*time.Second, dialogue.PathProcessSpeech)}}
	r := setupRouter(d, nil)

	resp := postForm(r, dialogue.PathVoiceInput, url.Values{"CallSid": {"CA5"}}, "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, call.EventListen, d.last(t).Kind)
	assert.Contains(t, resp.Body.String(), `timeout="8"`)
}

func TestLeadIsSpokenBeforeGather(t *testing.T) {
	d := &recordingDialogue{directive: call.Directive{
		Lead:  "Invalid option",
		Speak: "Press one or two",
		Input: call.DigitsInput(1, 5*time.Second, dialogue.PathMenuSelect),
	}}
	r := setupRouter(d, nil)

	body := postForm(r, dialogue.PathMenuSelect, url.Values{"CallSid": {"CA6"}, "Digits": {"9"}}, "").Body.String()

	lead := strings.Index(body, "Invalid option")
	gather := strings.Index(body, "<Gather")
	require.GreaterOrEqual(t, lead, 0)
	require.GreaterOrEqual(t, gather, 0)
	assert.Less(t, lead, gather)
}

func TestMissingCallSidIsRejected(t *testing.T) {
	d := &recordingDialogue{}
	r := setupRouter(d, nil)

	resp := postForm(r, dialogue.PathVoice, url.Values{"From": {"+40712345678"}}, "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, d.events)
}

func TestSignatureVerification(t *testing.T) {
	const token = "test-auth-token"
	const base = "https://ivr.example.com"
	d := &recordingDialogue{directive: call.Directive{Speak: "hi", Next: call.Hangup()}}
	r := setupRouter(d, NewSignatureVerifier(token, base))
	form := url.Values{"CallSid": {"CA7"}, "From": {"+40712345678"}}

	t.Run("valid", func(t *testing.T) {
		resp := postForm(r, dialogue.PathVoice, form, sign(token, base+dialogue.PathVoice, form))
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		resp := postForm(r, dialogue.PathVoice, form, "bogus")
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("missing", func(t *testing.T) {
		resp := postForm(r, dialogue.PathVoice, form, "")
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestRenderSayOnlyDirective(t *testing.T) {
	body, err := testRenderer.Render(call.Directive{Speak: "Goodbye", Input: call.Input{Kind: call.InputNone}, Next: call.Hangup()})

	require.NoError(t, err)
	assert.NotContains(t, body, "<Gather")
	assert.Contains(t, body, "Goodbye")
	assert.Contains(t, body, "<Hangup")
}
