// Package scheduler implements the reentrant per-aggregate alarm that
// drives an actor's sync/async projection and process-manager passes
// without ever running two passes for the same aggregate concurrently.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AlarmRunner executes one alarm pass for an aggregate: sync projection,
// broadcast, async projection, and process-manager derive+dispatch. It
// reports whether events remain unprocessed past the watermark so the
// scheduler knows to rearm immediately rather than wait out the idle
// interval.
type AlarmRunner interface {
	RunAlarm(ctx context.Context, aggregateID string) (hasMore bool, err error)
}

// IdleInterval is how long the scheduler waits before firing an alarm that
// was armed with no explicit delay.
const IdleInterval = 2 * time.Second

// alarmState is the per-aggregate coalescing state. A single goroutine at
// a time ever runs the alarm for a given aggregate; concurrent Arm calls
// while a run is in flight are coalesced into rearmRequested rather than
// spawning a second run.
type alarmState struct {
	mu             sync.Mutex
	timer          *time.Timer
	running        bool
	rearmRequested bool
}

// Scheduler owns one alarmState per aggregate and fires AlarmRunner.RunAlarm
// on its behalf, always rearming when the run errors or more events remain.
type Scheduler struct {
	runner AlarmRunner

	mu     sync.Mutex
	states map[string]*alarmState
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Scheduler bound to runner. The scheduler's background
// alarms run under a context derived from the one passed to Stop's
// counterpart context; callers that want clean shutdown should call Stop.
func New(runner AlarmRunner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		states: make(map[string]*alarmState),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Stop cancels every pending timer. In-flight runs are allowed to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		st.mu.Lock()
		if st.timer != nil {
			st.timer.Stop()
		}
		st.mu.Unlock()
	}
}

// Arm schedules an alarm pass for aggregateID after delay. If a pass is
// already running for this aggregate, the request is coalesced: the
// running pass's completion handler will rearm immediately instead of a
// second goroutine starting. If delay is zero, IdleInterval is used as the
// fallback debounce so a burst of Arm calls from one command handler
// collapses into a single fire.
func (s *Scheduler) Arm(aggregateID string, delay time.Duration) {
	if delay <= 0 {
		delay = IdleInterval
	}
	st := s.stateFor(aggregateID)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.running {
		st.rearmRequested = true
		return
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(delay, func() { s.fire(aggregateID, st) })
}

func (s *Scheduler) stateFor(aggregateID string) *alarmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[aggregateID]
	if !ok {
		st = &alarmState{}
		s.states[aggregateID] = st
	}
	return st
}

// fire runs one alarm pass. On return it always rearms if the pass failed,
// reported more unprocessed events, or a rearm was requested while it ran;
// otherwise the aggregate goes quiet until the next Arm call.
func (s *Scheduler) fire(aggregateID string, st *alarmState) {
	st.mu.Lock()
	st.running = true
	st.timer = nil
	st.mu.Unlock()

	hasMore, err := s.runner.RunAlarm(s.ctx, aggregateID)
	if err != nil {
		slog.Error("scheduler: alarm pass failed", "aggregate_id", aggregateID, "error", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.running = false
	rearm := err != nil || hasMore || st.rearmRequested
	st.rearmRequested = false
	if rearm {
		delay := IdleInterval
		if err != nil || hasMore {
			delay = 0
		}
		if delay <= 0 {
			delay = time.Millisecond
		}
		st.timer = time.AfterFunc(delay, func() { s.fire(aggregateID, st) })
	}
}
