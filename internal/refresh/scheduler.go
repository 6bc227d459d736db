// Package refresh drives periodic article fetches.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/watchfloor/internal/logging"
	"github.com/abelbrown/watchfloor/internal/otel"
)

// DefaultInterval is the period used when none is configured.
const DefaultInterval = 5 * time.Minute

// ErrClosed is returned by operations on a closed Scheduler.
var ErrClosed = errors.New("scheduler closed")

// State is the scheduler's run state.
type State int

const (
	Paused State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "paused"
}

// FetchFunc performs one refresh. Errors are logged, never surfaced.
type FetchFunc func(ctx context.Context) error

// Scheduler fires a FetchFunc every interval while Running.
// Uses context cancellation as the ONLY stop mechanism: each run of the
// timer loop has its own context, cancelled by Pause, SetInterval and Close.
// In-flight fetches receive the scheduler's root context, so only Close
// aborts them.
// Thread-safety: All methods are safe for concurrent use.
type Scheduler struct {
	fire   FetchFunc
	events *otel.Logger

	mu       sync.Mutex
	state    State
	interval time.Duration
	started  bool
	closed   bool
	root     context.Context
	cancel   context.CancelFunc
	stopLoop context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Scheduler in the given initial state. Nothing fires until
// Start is called. A non-positive interval means DefaultInterval.
func New(fire FetchFunc, interval time.Duration, initial State) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		fire:     fire,
		interval: interval,
		state:    initial,
	}
}

// SetEvents sets the event log. Nil disables events.
func (s *Scheduler) SetEvents(l *otel.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = l
}

// Start begins scheduling. The first fetch happens one interval after
// Start; callers that want an immediate fetch do it themselves. Cancelling
// ctx has the same effect as Close minus the wait.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	s.root, s.cancel = context.WithCancel(ctx)
	if s.state == Running {
		s.startLoopLocked()
	}
	return nil
}

// Pause stops the timer. A fetch already in progress runs to completion.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == Paused {
		return
	}
	s.state = Paused
	s.stopLoopLocked()
	s.events.Info(otel.KindRefreshPause, "refresh", "auto-refresh paused")
}

// Resume restarts the timer with a full interval.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state == Running {
		return
	}
	s.state = Running
	if s.started {
		s.startLoopLocked()
	}
	s.events.Info(otel.KindRefreshResume, "refresh", fmt.Sprintf("auto-refresh every %s", s.interval))
}

// SetInterval changes the period. While running the timer restarts at the
// new period rather than finishing the old one.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if d == s.interval {
		return nil
	}
	s.interval = d
	if s.started && s.state == Running {
		s.stopLoopLocked()
		s.startLoopLocked()
	}
	return nil
}

// State returns the current run state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval returns the current period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Close cancels the timer and any in-flight fetch, then waits for the
// loop to exit. No fetch is started after Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopLoopLocked()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) startLoopLocked() {
	loopCtx, stop := context.WithCancel(s.root)
	s.stopLoop = stop
	interval := s.interval
	root := s.root
	events := s.events

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				// Both channels may be ready; a stopped loop must not fire.
				if loopCtx.Err() != nil {
					return
				}
				s.run(root, events)
			}
		}
	}()
}

func (s *Scheduler) stopLoopLocked() {
	if s.stopLoop != nil {
		s.stopLoop()
		s.stopLoop = nil
	}
}

func (s *Scheduler) run(ctx context.Context, events *otel.Logger) {
	start := time.Now()
	err := s.fire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Warn("background refresh failed", "error", err)
		events.Emit(otel.Event{
			Level: otel.LevelWarn,
			Kind:  otel.KindRefreshError,
			Comp:  "refresh",
			Err:   err.Error(),
			Dur:   time.Since(start),
		})
		return
	}
	events.Emit(otel.Event{
		Level: otel.LevelDebug,
		Kind:  otel.KindRefreshTick,
		Comp:  "refresh",
		Dur:   time.Since(start),
	})
}
