package dialogue

import (
	"errors"

	"github.com/onevoice/ivr/backend/internal/service/analytics"
)

var (
	// ErrInputAbsent means the caller produced no transcript or digit; the controller re-prompts.
	ErrInputAbsent = errors.New("input absent")
	// ErrGoodbyeDetected ends the conversation gracefully. It is not a failure.
	ErrGoodbyeDetected = errors.New("goodbye detected")
	// ErrBackendFailure is a language backend error or timeout. The call ends with an apology.
	ErrBackendFailure = errors.New("language backend failure")
	// ErrStorageFailure is an analytics write error. It is logged and never reaches the caller.
	ErrStorageFailure = analytics.ErrStorageFailure
)
