package session

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultSweepInterval is how often expired sessions are evicted.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs Store.Sweep on a fixed interval.
type Sweeper struct {
	scheduler gocron.Scheduler
	store     *Store
	interval  time.Duration
	onSweep   func(evicted int)
}

// NewSweeper creates a sweeper; call Start to begin and Stop to tear it down.
func NewSweeper(store *Store, interval time.Duration, onSweep func(evicted int)) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Sweeper{scheduler: scheduler, store: store, interval: interval, onSweep: onSweep}, nil
}

// Scheduler exposes the underlying scheduler so other periodic jobs can share it.
func (w *Sweeper) Scheduler() gocron.Scheduler {
	return w.scheduler
}

// Start registers the sweep job and starts the scheduler.
func (w *Sweeper) Start() error {
	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.RunOnce),
		gocron.WithName("session-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}
	w.scheduler.Start()
	w.store.logger.Info().Dur("interval", w.interval).Msg("session sweeper started")
	return nil
}

// RunOnce sweeps immediately.
func (w *Sweeper) RunOnce() {
	evicted := w.store.Sweep(w.store.now())
	if w.onSweep != nil {
		w.onSweep(evicted)
	}
}

// Stop shuts the scheduler down.
func (w *Sweeper) Stop() error {
	return w.scheduler.Shutdown()
}
