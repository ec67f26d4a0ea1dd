package voice

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go/client"

	"github.com/onevoice/ivr/backend/pkg/utils"
)

// SignatureVerifier rejects webhooks whose X-Twilio-Signature does not match.
type SignatureVerifier struct {
	validator client.RequestValidator
	baseURL   string
}

// NewSignatureVerifier validates against authToken. baseURL is the public origin
// Twilio calls; when empty the request's own scheme and host are used.
func NewSignatureVerifier(authToken, baseURL string) *SignatureVerifier {
	return &SignatureVerifier{validator: client.NewRequestValidator(authToken), baseURL: baseURL}
}

// Middleware enforces the signature.
func (v *SignatureVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid form body")
			return
		}

		params := make(map[string]string, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		url := v.requestURL(r)
		if !v.validator.Validate(url, params, r.Header.Get("X-Twilio-Signature")) {
			zerolog.Ctx(r.Context()).Warn().
				Str("call_sid", r.PostForm.Get("CallSid")).
				Str("url", url).
				Msg("rejected webhook with invalid signature")
			utils.RespondError(w, http.StatusForbidden, "invalid signature")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *SignatureVerifier) requestURL(r *http.Request) string {
	if v.baseURL != "" {
		return v.baseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
