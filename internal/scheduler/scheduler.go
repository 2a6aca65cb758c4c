// Package scheduler owns the per-tracker check loops. Every enabled tracker
// gets its own cancellable timer goroutine; checks for different trackers
// run fully in parallel while at most one check per tracker is ever in
// flight.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/provider"
	"github.com/zulandar/signalbox/internal/secrets"
	"github.com/zulandar/signalbox/internal/store"
)

// Fetch limits. Scheduled ticks look at a small window; manual checks dig
// deeper to cover high-frequency publishers.
const (
	ScheduledFetchLimit = 10
	ManualFetchLimit    = 30
)

// DefaultCheckTimeout bounds one full check cycle.
const DefaultCheckTimeout = 60 * time.Second

// ProviderFactory builds the provider for a tracker. Injectable for tests.
type ProviderFactory func(tracker models.Tracker, token string) (provider.Provider, error)

// Dispatcher is the notification fan-out the scheduler emits events into.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notify.Event)
}

// inflight tracks one running check so concurrent triggers can coalesce on
// its result instead of fetching twice.
type inflight struct {
	done   chan struct{}
	status models.TrackerStatus
}

// Scheduler runs the check loops and exposes manual triggers and config
// reactions to the API layer.
type Scheduler struct {
	store      *store.Store
	dispatcher Dispatcher
	resolve    secrets.Resolver
	providers  ProviderFactory
	timeout    time.Duration

	mu       sync.Mutex
	jobs     map[string]context.CancelFunc
	checking map[string]*inflight
	baseCtx  context.Context
	cancel   context.CancelFunc
	started  bool
	wg       sync.WaitGroup
}

// Opts holds parameters for creating a Scheduler.
type Opts struct {
	Store      *store.Store
	Dispatcher Dispatcher
	Resolve    secrets.Resolver
	Providers  ProviderFactory // defaults to provider.New
	Timeout    time.Duration   // per-check, defaults to DefaultCheckTimeout
}

// New creates a Scheduler.
func New(opts Opts) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("scheduler: store is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("scheduler: dispatcher is required")
	}
	if opts.Resolve == nil {
		return nil, fmt.Errorf("scheduler: secret resolver is required")
	}
	providers := opts.Providers
	if providers == nil {
		providers = provider.New
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Scheduler{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		resolve:    opts.Resolve,
		providers:  providers,
		timeout:    timeout,
		jobs:       make(map[string]context.CancelFunc),
		checking:   make(map[string]*inflight),
	}, nil
}

// Start arms a job for every enabled tracker. Each job checks once
// immediately, then on its interval or cron schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already started")
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()

	trackers, err := s.store.EnabledTrackers()
	if err != nil {
		return fmt.Errorf("scheduler: start: %w", err)
	}
	for _, t := range trackers {
		s.arm(t.Name)
	}
	log.Printf("scheduler: started with %d tracker(s)", len(trackers))
	return nil
}

// Stop cancels all jobs and waits for in-flight checks to finish. A running
// check completes its cycle so the store is never left mid-update; it is
// simply not re-armed. A stopped Scheduler can be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.jobs = make(map[string]context.CancelFunc)
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
}

// Refresh reacts to a tracker being created or edited: the old job is
// cancelled and, when the tracker is enabled, a fresh one is armed at the
// new schedule starting with an immediate check.
func (s *Scheduler) Refresh(name string) error {
	s.disarm(name)

	tracker, err := s.store.GetTracker(name)
	if err != nil {
		if s.store.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("scheduler: refresh %s: %w", name, err)
	}
	if !tracker.Enabled {
		return nil
	}
	s.arm(name)
	return nil
}

// Remove reacts to a tracker being deleted or disabled.
func (s *Scheduler) Remove(name string) {
	s.disarm(name)
}

// arm starts the job goroutine for one tracker.
func (s *Scheduler) arm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if cancel, ok := s.jobs[name]; ok {
		cancel()
	}
	jobCtx, cancel := context.WithCancel(s.baseCtx)
	s.jobs[name] = cancel
	s.wg.Add(1)
	go s.run(jobCtx, name)
}

// disarm cancels the job goroutine for one tracker, if armed.
func (s *Scheduler) disarm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.jobs[name]; ok {
		cancel()
		delete(s.jobs, name)
	}
}

// run is one tracker's loop: immediate check, then re-arm from the freshest
// config so interval edits between ticks are honored.
func (s *Scheduler) run(ctx context.Context, name string) {
	defer s.wg.Done()

	s.tick(ctx, name)

	for {
		tracker, err := s.store.GetTracker(name)
		if err != nil || !tracker.Enabled {
			return
		}

		timer := time.NewTimer(nextDelay(tracker))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx, name)
		}
	}
}

// tick runs one scheduled check unless one is already in flight for this
// tracker, in which case the tick is skipped.
func (s *Scheduler) tick(ctx context.Context, name string) {
	s.mu.Lock()
	if _, busy := s.checking[name]; busy {
		s.mu.Unlock()
		return
	}
	inf := &inflight{done: make(chan struct{})}
	s.checking[name] = inf
	s.mu.Unlock()

	status := s.check(ctx, name, ScheduledFetchLimit)
	s.finish(name, inf, status)
}

// CheckNow triggers a manual check. If a check is already in flight for the
// tracker the call coalesces: it waits for that check and returns its
// result rather than fetching concurrently.
func (s *Scheduler) CheckNow(ctx context.Context, name string) (models.TrackerStatus, error) {
	if _, err := s.store.GetTracker(name); err != nil {
		return models.TrackerStatus{}, fmt.Errorf("scheduler: check %s: %w", name, err)
	}

	s.mu.Lock()
	if inf, busy := s.checking[name]; busy {
		s.mu.Unlock()
		select {
		case <-inf.done:
			return inf.status, nil
		case <-ctx.Done():
			return models.TrackerStatus{}, fmt.Errorf("scheduler: check %s: %w", name, ctx.Err())
		}
	}
	inf := &inflight{done: make(chan struct{})}
	s.checking[name] = inf
	s.mu.Unlock()

	status := s.check(ctx, name, ManualFetchLimit)
	s.finish(name, inf, status)
	return status, nil
}

// finish publishes a check result to any coalesced waiters and releases the
// per-tracker exclusivity slot.
func (s *Scheduler) finish(name string, inf *inflight, status models.TrackerStatus) {
	s.mu.Lock()
	inf.status = status
	delete(s.checking, name)
	s.mu.Unlock()
	close(inf.done)
}

// Checking reports whether a check is currently in flight for a tracker.
func (s *Scheduler) Checking(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.checking[name]
	return busy
}

// nextDelay computes the wait before a tracker's next check: the cron
// schedule when one is set, the fixed interval otherwise.
func nextDelay(tracker models.Tracker) time.Duration {
	if tracker.Schedule != "" {
		if d := nextCronDuration(tracker.Schedule); d > 0 {
			return d
		}
		log.Printf("scheduler: %s: invalid cron schedule %q, falling back to interval", tracker.Name, tracker.Schedule)
	}
	interval := tracker.Interval
	if interval <= 0 {
		interval = 360
	}
	return time.Duration(interval) * time.Minute
}
