package call

import "time"

// Call log statuses besides the provider's own CallStatus values.
const (
	StatusInProgress     = "in-progress"
	StatusCompleted      = "completed"
	StatusBackendFailure = "backend_failure"
)

// Record is one row of the persistent call log.
type Record struct {
	ID          string     `json:"id"`
	FromMasked  string     `json:"from"`
	Mode        Mode       `json:"mode"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	TurnCount   int        `json:"turnCount"`
	DurationSec int        `json:"durationSec"`
	Status      string     `json:"status"`
	Outcome     *Outcome   `json:"outcome,omitempty"`
}

// DailyAggregate summarizes the calls started on one day.
type DailyAggregate struct {
	Date               string       `json:"date"`
	TotalCalls         int          `json:"total_calls"`
	CallsByMode        map[Mode]int `json:"calls_by_mode"`
	AvgTurns           float64      `json:"avg_turns"`
	AvgDurationSec     float64      `json:"avg_duration_sec"`
	PositiveOutcomes   int          `json:"positive_outcomes"`
	NegativeOutcomes   int          `json:"negative_outcomes"`
	NoResponseOutcomes int          `json:"no_response_outcomes"`
}

// TurnRecord is one row of the persistent turn log.
type TurnRecord struct {
	CallID     string    `json:"callId"`
	Number     int       `json:"turn"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Confidence *float64  `json:"confidence,omitempty"`
	LatencyMs  *int64    `json:"latencyMs,omitempty"`
	Urgent     bool      `json:"urgent,omitempty"`
	At         time.Time `json:"at"`
}

// MaskPhone hides all but the country prefix and the last three digits of a caller number.
func MaskPhone(number string) string {
	runes := []rune(number)
	if len(runes) <= 6 {
		return number
	}
	masked := make([]rune, len(runes))
	for i, r := range runes {
		if i < 3 || i >= len(runes)-3 {
			masked[i] = r
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}
