// Package sched provides the debounced refresh scheduler.
//
// One shared timer backs both the full and the partial entry point: every
// schedule call cancels and supersedes the previous one, so at most one
// refresh is ever pending and the last caller decides its shape. The data
// itself is re-derived fresh when the timer fires, so last-writer-wins
// applies to the schedule only.
package sched

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period before a scheduled refresh fires.
const DefaultDelay = 300 * time.Millisecond

// Target identifies the single document a partial refresh is scoped to.
type Target struct {
	// ID is the affected item's ID.
	ID string
	// Path is the affected document.
	Path string
}

// Scheduler debounces refresh requests. A delay of zero executes the
// callback synchronously inside the schedule call; tests and one-shot tools
// use that mode.
//
// The callbacks run on the timer's goroutine. Callers that need loop
// affinity enqueue from inside the callback.
type Scheduler struct {
	delay      time.Duration
	runFull    func()
	runPartial func(Target)

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// New creates a scheduler invoking the given callbacks when a scheduled
// refresh fires.
func New(delay time.Duration, runFull func(), runPartial func(Target)) *Scheduler {
	return &Scheduler{delay: delay, runFull: runFull, runPartial: runPartial}
}

// ScheduleFull (re)arms the shared timer for a full refresh.
func (s *Scheduler) ScheduleFull() {
	s.schedule(true, Target{})
}

// SchedulePartial (re)arms the shared timer for a partial refresh of one
// node. A later ScheduleFull supersedes it entirely.
func (s *Scheduler) SchedulePartial(t Target) {
	s.schedule(false, t)
}

// Cancel drops any pending refresh without executing it. Explicit immediate
// refreshes call this first so manual actions are never queued behind
// automatic ones.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Pending reports whether a refresh is currently scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) schedule(full bool, t Target) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if s.delay <= 0 {
		s.mu.Unlock()
		s.invoke(full, t)
		return
	}

	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen, full, t) })
	s.mu.Unlock()
}

// fire executes a scheduled refresh unless a later schedule or Cancel
// superseded it while the timer goroutine was starting up.
func (s *Scheduler) fire(gen uint64, full bool, t Target) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.invoke(full, t)
}

func (s *Scheduler) invoke(full bool, t Target) {
	if full {
		s.runFull()
		return
	}
	s.runPartial(t)
}
