package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onevoice/ivr/backend/internal/model/call"
)

// MemoryStore keeps the call log in process. Used when no database path is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]*call.Record
	turns map[string][]call.TurnRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls: make(map[string]*call.Record),
		turns: make(map[string][]call.TurnRecord),
	}
}

func (m *MemoryStore) record(id string, at time.Time) *call.Record {
	rec, ok := m.calls[id]
	if !ok {
		rec = &call.Record{ID: id, StartedAt: at.UTC(), Status: call.StatusInProgress}
		m.calls[id] = rec
	}
	return rec
}

// LogCallStart implements Store.
func (m *MemoryStore) LogCallStart(_ context.Context, id, fromMasked string, mode call.Mode, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(id, at)
	if fromMasked != "" {
		rec.FromMasked = fromMasked
	}
	if mode != call.ModeUnset {
		rec.Mode = mode
	}
	return nil
}

// ResetCall implements Store.
func (m *MemoryStore) ResetCall(_ context.Context, id, fromMasked string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(id, at)
	if fromMasked != "" {
		rec.FromMasked = fromMasked
	}
	rec.Mode = call.ModeUnset
	rec.Outcome = nil
	rec.Status = call.StatusInProgress
	rec.EndedAt = nil
	rec.TurnCount = 0
	rec.DurationSec = 0
	return nil
}

// LogTurn implements Store.
func (m *MemoryStore) LogTurn(_ context.Context, turn call.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(turn.CallID, turn.At)
	if turn.Role == call.RoleUser && turn.Number > rec.TurnCount {
		rec.TurnCount = turn.Number
	}
	m.turns[turn.CallID] = append(m.turns[turn.CallID], turn)
	return nil
}

// LogCallEnd implements Store.
func (m *MemoryStore) LogCallEnd(_ context.Context, id string, turnCount, durationSec int, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(id, at)
	ended := at.UTC()
	rec.EndedAt = &ended
	if turnCount > rec.TurnCount {
		rec.TurnCount = turnCount
	}
	if durationSec > 0 {
		rec.DurationSec = durationSec
	}
	if rec.Status != call.StatusBackendFailure {
		rec.Status = status
	}
	return nil
}

// LogOutcome implements Store.
func (m *MemoryStore) LogOutcome(_ context.Context, id string, outcome call.Outcome, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(id, at)
	rec.Outcome = &outcome
	return nil
}

// SetMode implements Store.
func (m *MemoryStore) SetMode(_ context.Context, id string, mode call.Mode, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(id, at).Mode = mode
	return nil
}

// ReadCallsSince implements Store.
func (m *MemoryStore) ReadCallsSince(_ context.Context, since time.Time) ([]call.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]call.Record, 0, len(m.calls))
	for _, rec := range m.calls {
		if rec.StartedAt.Before(since) {
			continue
		}
		cp := *rec
		if rec.Outcome != nil {
			o := *rec.Outcome
			cp.Outcome = &o
		}
		if rec.EndedAt != nil {
			e := *rec.EndedAt
			cp.EndedAt = &e
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// Turns returns the logged turns of one call.
func (m *MemoryStore) Turns(_ context.Context, id string) ([]call.TurnRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]call.TurnRecord(nil), m.turns[id]...), nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
