package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/onevoice/ivr/backend/internal/logging"
)

// ErrStorageFailure wraps every store error seen by the sink.
var ErrStorageFailure = errors.New("analytics storage failure")

const (
	publishTimeout = 100 * time.Millisecond
	applyTimeout   = 5 * time.Second
)

// Observer receives every event after the store has applied it.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Sink drains call log events into a Store on a single worker goroutine.
// Publishing never fails; store errors are logged and counted.
type Sink struct {
	store     Store
	queue     chan Event
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	mu        sync.RWMutex
	done      chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64
	onDrop  func()
	logger  zerolog.Logger
}

// SinkOption customizes a Sink.
type SinkOption func(*Sink)

// WithDropHook runs fn whenever an event is dropped because the queue is full.
func WithDropHook(fn func()) SinkOption {
	return func(s *Sink) { s.onDrop = fn }
}

// NewSink starts the worker. size is the queue capacity.
func NewSink(store Store, size int, opts ...SinkOption) *Sink {
	if size < 1 {
		size = 1
	}
	s := &Sink{
		store:  store,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		logger: logging.Component("analytics"),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Store exposes the underlying store for read paths.
func (s *Sink) Store() Store {
	return s.store
}

// AddObserver registers o for every applied event.
func (s *Sink) AddObserver(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Publish enqueues e, waiting at most a short timeout when the queue is full.
func (s *Sink) Publish(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- e:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case s.queue <- e:
		case <-timer.C:
			s.dropped.Add(1)
			if s.onDrop != nil {
				s.onDrop()
			}
			s.logger.Warn().Str("kind", string(e.Kind)).Str("call_sid", e.CallID).Msg("analytics queue full, event dropped")
		}
	}
}

// Flush blocks until every event published before the call has been applied.
func (s *Sink) Flush(ctx context.Context) error {
	marker := Event{flushed: make(chan struct{})}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.queue <- marker:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return fmt.Errorf("flush analytics: %w", ctx.Err())
	}

	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush analytics: %w", ctx.Err())
	}
}

// Close stops accepting events, drains the queue and closes the store.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.store.Close()
}

// Dropped returns how many events were discarded on a full queue.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Failed returns how many events the store rejected.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.queue {
		if e.flushed != nil {
			close(e.flushed)
			continue
		}
		if err := s.apply(e); err != nil {
			err = fmt.Errorf("%w: %w", ErrStorageFailure, err)
			s.failed.Add(1)
			s.logger.Warn().Err(err).Str("kind", string(e.Kind)).Str("call_sid", e.CallID).Msg("analytics write failed")
		}
		s.notify(e)
	}
}

func (s *Sink) apply(e Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	switch e.Kind {
	case KindCallStart:
		return s.store.LogCallStart(ctx, e.CallID, e.From, e.Mode, e.At)
	case KindCallRestart:
		return s.store.ResetCall(ctx, e.CallID, e.From, e.At)
	case KindTurn:
		if e.Turn == nil {
			return fmt.Errorf("turn event without payload")
		}
		return s.store.LogTurn(ctx, *e.Turn)
	case KindMode:
		return s.store.SetMode(ctx, e.CallID, e.Mode, e.At)
	case KindOutcome:
		return s.store.LogOutcome(ctx, e.CallID, e.Outcome, e.At)
	case KindCallEnd:
		return s.store.LogCallEnd(ctx, e.CallID, e.TurnCount, e.DurationSec, e.Status, e.At)
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

func (s *Sink) notify(e Event) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.Observe(e)
	}
}
