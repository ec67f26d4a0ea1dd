package outcome

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/metrics"
)

// DateLayout is the day format accepted by ComputeDailyAggregate callers.
const DateLayout = "2006-01-02"

// Tracker records caller satisfaction and derives daily summaries from the call log.
type Tracker struct {
	sink     *analytics.Sink
	metrics  *metrics.Metrics
	now      func() time.Time
	location *time.Location
	logger   zerolog.Logger
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone that bounds a day. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.location = loc
		}
	}
}

// NewTracker creates a tracker over the analytics sink.
func NewTracker(sink *analytics.Sink, m *metrics.Metrics, opts ...Option) *Tracker {
	t := &Tracker{
		sink:     sink,
		metrics:  m,
		now:      time.Now,
		location: time.UTC,
		logger:   logging.Component("outcome"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordOutcome logs the final outcome of a call and counts it. A later call
// for the same id overwrites the call log entry.
func (t *Tracker) RecordOutcome(ctx context.Context, sessionID string, category call.Outcome) {
	t.SeedOutcome(ctx, sessionID, category)
	t.CountOutcome(category)
	t.logger.Info().Str("call_sid", sessionID).Str("outcome", string(category)).Msg("outcome recorded")
}

// SeedOutcome writes a provisional outcome to the call log without counting it.
func (t *Tracker) SeedOutcome(_ context.Context, sessionID string, category call.Outcome) {
	t.sink.Publish(analytics.OutcomeRecorded(sessionID, category, t.now().UTC()))
}

// CountOutcome increments the outcome metric once a call's outcome is final.
func (t *Tracker) CountOutcome(category call.Outcome) {
	t.metrics.RecordOutcome(string(category))
}

// Today returns the current day in the tracker's time zone.
func (t *Tracker) Today() time.Time {
	return t.now().In(t.location)
}

// ComputeDailyAggregate summarizes the calls started on date's calendar day.
// A day without calls yields a zero aggregate.
func (t *Tracker) ComputeDailyAggregate(ctx context.Context, date time.Time) (call.DailyAggregate, error) {
	local := date.In(t.location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, t.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	if err := t.sink.Flush(ctx); err != nil {
		t.logger.Warn().Err(err).Msg("aggregating without flushing pending events")
	}

	records, err := t.sink.Store().ReadCallsSince(ctx, dayStart)
	if err != nil {
		return call.DailyAggregate{}, fmt.Errorf("read call log: %w", err)
	}

	agg := call.DailyAggregate{
		Date:        dayStart.Format(DateLayout),
		CallsByMode: make(map[call.Mode]int),
	}
	var turns, duration int
	for _, rec := range records {
		if !rec.StartedAt.Before(dayEnd) {
			continue
		}
		agg.TotalCalls++
		// calls that hung up at the menu have no mode
		if rec.Mode.Valid() {
			agg.CallsByMode[rec.Mode]++
		}
		turns += rec.TurnCount
		duration += rec.DurationSec

		if rec.Outcome == nil {
			continue
		}
		switch *rec.Outcome {
		case call.OutcomePositive:
			agg.PositiveOutcomes++
		case call.OutcomeNegative:
			agg.NegativeOutcomes++
		case call.OutcomeNoResponse:
			agg.NoResponseOutcomes++
		}
	}

	if agg.TotalCalls > 0 {
		agg.AvgTurns = float64(turns) / float64(agg.TotalCalls)
		agg.AvgDurationSec = float64(duration) / float64(agg.TotalCalls)
	}
	return agg, nil
}
