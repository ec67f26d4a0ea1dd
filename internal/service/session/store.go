package session

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/logging"
	"github.com/onevoice/ivr/backend/internal/model/call"
)

// DefaultTTL is the maximum age of a call session before the sweep evicts it.
const DefaultTTL = 30 * time.Minute

// entry wraps one session with its per-call lock.
type entry struct {
	mu      sync.Mutex
	session *call.Session
	removed atomic.Bool

	// mirrorMu orders mirror writes so a Save never lands after the Remove.
	mirrorMu sync.Mutex
}

// Store is the single source of truth for live call sessions.
type Store struct {
	items  *cache.Cache
	ttl    time.Duration
	now    func() time.Time
	mirror Mirror
	logger zerolog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMirror publishes session lifecycle to an external registry.
func WithMirror(m Mirror) Option {
	return func(s *Store) {
		if m != nil {
			s.mirror = m
		}
	}
}

// NewStore creates an empty store. Items never expire on their own; Sweep enforces the TTL.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		items:  cache.New(cache.NoExpiration, 0),
		ttl:    ttl,
		now:    time.Now,
		mirror: noopMirror{},
		logger: logging.Component("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.items.OnEvicted(s.evicted)
	return s
}

// Handle is exclusive access to one session for the duration of a webhook.
type Handle struct {
	Session *call.Session
	created bool
	entry   *entry
	store   *Store
}

// Created reports whether this acquisition created the session.
func (h *Handle) Created() bool { return h.created }

// Live reports whether the session is still held by the store.
func (h *Handle) Live() bool { return !h.entry.removed.Load() }

// Release unlocks the session and publishes its state to the mirror.
func (h *Handle) Release() {
	e := h.entry
	e.mirrorMu.Lock()
	if !e.removed.Load() {
		h.store.mirror.Save(*h.Session, h.store.ttl)
	}
	e.mirrorMu.Unlock()
	e.mu.Unlock()
}

// Acquire returns the session for id, creating it if absent, and locks it.
// Concurrent webhooks for the same id are serialized.
func (s *Store) Acquire(id string) *Handle {
	for {
		e, created := s.lookupOrCreate(id)
		e.mu.Lock()
		if e.removed.Load() {
			// deleted while we waited; start over with a fresh session
			e.mu.Unlock()
			continue
		}
		return &Handle{Session: e.session, created: created, entry: e, store: s}
	}
}

// Lookup locks an existing session without creating one.
func (s *Store) Lookup(id string) (*Handle, bool) {
	value, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	e := value.(*entry)
	e.mu.Lock()
	if e.removed.Load() {
		e.mu.Unlock()
		return nil, false
	}
	return &Handle{Session: e.session, entry: e, store: s}, true
}

// TryLookup is Lookup without waiting. A nil handle with exists true means
// another webhook holds the session.
func (s *Store) TryLookup(id string) (h *Handle, exists bool) {
	value, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	e := value.(*entry)
	if !e.mu.TryLock() {
		return nil, !e.removed.Load()
	}
	if e.removed.Load() {
		e.mu.Unlock()
		return nil, false
	}
	return &Handle{Session: e.session, entry: e, store: s}, true
}

// Get returns a snapshot of the session for id, creating it if absent.
func (s *Store) Get(id string) call.Session {
	h := s.Acquire(id)
	defer h.Release()
	return h.Session.Snapshot()
}

// Peek returns a snapshot without creating a missing session.
func (s *Store) Peek(id string) (call.Session, bool) {
	value, ok := s.items.Get(id)
	if !ok {
		return call.Session{}, false
	}
	e := value.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Snapshot(), true
}

// Delete removes the session without waiting for in-flight handlers.
func (s *Store) Delete(id string) {
	s.items.Delete(id)
}

// Sweep removes every session older than the TTL and returns how many were evicted.
func (s *Store) Sweep(now time.Time) int {
	evicted := 0
	for id, item := range s.items.Items() {
		e := item.Object.(*entry)
		// a locked session is serving a webhook and is not abandoned
		if !e.mu.TryLock() {
			continue
		}
		expired := now.Sub(e.session.StartedAt) > s.ttl
		e.mu.Unlock()
		if expired {
			s.items.Delete(id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info().Int("evicted", evicted).Int("remaining", s.Count()).Msg("swept expired sessions")
	}
	return evicted
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	return s.items.ItemCount()
}

// List returns snapshots of every live session, oldest first.
func (s *Store) List() []call.Session {
	items := s.items.Items()
	out := make([]call.Session, 0, len(items))
	for _, item := range items {
		e := item.Object.(*entry)
		e.mu.Lock()
		out = append(out, e.session.Snapshot())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Ping checks the mirror, if any.
func (s *Store) Ping(ctx context.Context) error {
	return s.mirror.Ping(ctx)
}

// Close drops every session and releases the mirror.
func (s *Store) Close() error {
	s.items.Flush()
	return s.mirror.Close()
}

func (s *Store) lookupOrCreate(id string) (*entry, bool) {
	for {
		if value, ok := s.items.Get(id); ok {
			return value.(*entry), false
		}
		e := &entry{session: call.NewSession(id, s.now().UTC())}
		if err := s.items.Add(id, e, cache.NoExpiration); err == nil {
			s.logger.Debug().Str("call_sid", id).Msg("session created")
			return e, true
		}
		// lost the race to a concurrent creator
	}
}

// evicted runs for Delete and Sweep alike. Flush does not trigger it.
func (s *Store) evicted(id string, value interface{}) {
	e := value.(*entry)
	e.mirrorMu.Lock()
	defer e.mirrorMu.Unlock()
	e.removed.Store(true)
	s.mirror.Remove(id)
}
