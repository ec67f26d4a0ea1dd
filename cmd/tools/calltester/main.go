// Command calltester drives a scripted phone call against a running server by
// posting the same form webhooks Twilio sends.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/service/dialogue"
)

type step struct {
	path string
	form url.Values
}

type caller struct {
	client  *http.Client
	baseURL string
	token   string
	callSID string
	from    string
}

func main() {
	_ = godotenv.Load()
	logging.Init("debug", "console")

	baseURL := flag.String("base", "http://localhost:3000", "server origin")
	digit := flag.String("digit", "1", "menu digit to press (1 dental, 2 agri)")
	script := flag.String("say", "Bună ziua, cât costă un implant?|Mulțumesc, la revedere", "utterances separated by |")
	outcomeDigit := flag.String("outcome", "1", "satisfaction digit, empty to hang up without answering")
	from := flag.String("from", "+40712345678", "caller number")
	callSID := flag.String("call", "", "CallSid to use, generated when empty")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	sid := *callSID
	if sid == "" {
		sid = "CA" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	c := &caller{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: strings.TrimRight(*baseURL, "/"),
		token:   os.Getenv("TWILIO_AUTH_TOKEN"),
		callSID: sid,
		from:    *from,
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := c.run(ctx, *digit, strings.Split(*script, "|"), *outcomeDigit); err != nil {
		log.Fatal().Err(err).Str("call_sid", sid).Msg("scripted call failed")
	}
	log.Info().Str("call_sid", sid).Msg("scripted call finished")
}

func (c *caller) run(ctx context.Context, digit string, utterances []string, outcomeDigit string) error {
	start := time.Now()
	steps := []step{
		{dialogue.PathVoice, url.Values{}},
		{dialogue.PathMenuSelect, url.Values{"Digits": {digit}}},
	}
	for _, text := range utterances {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		steps = append(steps, step{dialogue.PathProcessSpeech, url.Values{"SpeechResult": {text}, "Confidence": {"0.92"}}})
	}
	if outcomeDigit != "" {
		steps = append(steps, step{dialogue.PathOutcome, url.Values{"Digits": {outcomeDigit}}})
	}

	for _, s := range steps {
		body, err := c.post(ctx, s.path, s.form)
		if err != nil {
			return err
		}
		fmt.Printf("--> %s %s\n%s\n\n", s.path, s.form.Encode(), body)
	}

	duration := int(time.Since(start).Seconds())
	_, err := c.post(ctx, dialogue.PathCallStatus, url.Values{
		"CallStatus":   {"completed"},
		"CallDuration": {fmt.Sprint(duration)},
	})
	return err
}

func (c *caller) post(ctx context.Context, path string, form url.Values) (string, error) {
	form.Set("CallSid", c.callSID)
	form.Set("From", c.from)

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.token != "" {
		req.Header.Set("X-Twilio-Signature", sign(c.token, target, form))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, body)
	}
	return string(body), nil
}

// sign computes X-Twilio-Signature: base64(HMAC-SHA1(url + sorted key/value pairs)).
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
