package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// counter tracks callback invocations for scheduler tests.
type counter struct {
	mu       sync.Mutex
	fulls    int32
	partials []Target
}

func (c *counter) full() { atomic.AddInt32(&c.fulls, 1) }

func (c *counter) partial(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, t)
}

func (c *counter) fullCount() int32 { return atomic.LoadInt32(&c.fulls) }

func (c *counter) partialTargets() []Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Target(nil), c.partials...)
}

// TestScheduleFull_DebounceCollapsing verifies N schedule calls inside the
// quiet window yield exactly one execution.
func TestScheduleFull_DebounceCollapsing(t *testing.T) {
	var c counter
	s := New(30*time.Millisecond, c.full, c.partial)

	for i := 0; i < 10; i++ {
		s.ScheduleFull()
		time.Sleep(2 * time.Millisecond)
	}

	if got := c.fullCount(); got != 0 {
		t.Fatalf("refresh fired %d times before the quiet period", got)
	}

	time.Sleep(100 * time.Millisecond)

	if got := c.fullCount(); got != 1 {
		t.Errorf("refresh fired %d times, want exactly 1", got)
	}
	if s.Pending() {
		t.Error("Pending() should be false after the timer fired")
	}
}

// TestSchedule_LastWriterWins verifies the most recent schedule call decides
// the shape of the single pending refresh.
func TestSchedule_LastWriterWins(t *testing.T) {
	var c counter
	s := New(30*time.Millisecond, c.full, c.partial)

	s.SchedulePartial(Target{ID: "story-1", Path: "plan/story-1.md"})
	s.ScheduleFull()

	time.Sleep(100 * time.Millisecond)

	if got := c.fullCount(); got != 1 {
		t.Errorf("full fired %d times, want 1", got)
	}
	if got := c.partialTargets(); len(got) != 0 {
		t.Errorf("partial fired with %v, want superseded", got)
	}
}

// TestSchedulePartial_CarriesTarget verifies the partial callback receives
// the scheduled target.
func TestSchedulePartial_CarriesTarget(t *testing.T) {
	var c counter
	s := New(20*time.Millisecond, c.full, c.partial)

	s.SchedulePartial(Target{ID: "story-2", Path: "plan/story-2.md"})
	time.Sleep(80 * time.Millisecond)

	got := c.partialTargets()
	if len(got) != 1 || got[0].ID != "story-2" {
		t.Errorf("partial targets = %v, want [story-2]", got)
	}
}

// TestCancel verifies a cancelled refresh never executes.
func TestCancel(t *testing.T) {
	var c counter
	s := New(20*time.Millisecond, c.full, c.partial)

	s.ScheduleFull()
	s.Cancel()

	if s.Pending() {
		t.Error("Pending() should be false after Cancel")
	}

	time.Sleep(80 * time.Millisecond)
	if got := c.fullCount(); got != 0 {
		t.Errorf("cancelled refresh fired %d times", got)
	}
}

// TestZeroDelay_Synchronous verifies delay 0 executes inside the schedule
// call.
func TestZeroDelay_Synchronous(t *testing.T) {
	var c counter
	s := New(0, c.full, c.partial)

	s.ScheduleFull()
	if got := c.fullCount(); got != 1 {
		t.Errorf("full fired %d times synchronously, want 1", got)
	}

	s.SchedulePartial(Target{ID: "story-1"})
	if got := c.partialTargets(); len(got) != 1 {
		t.Errorf("partial fired %d times synchronously, want 1", len(got))
	}
}

// TestReschedule_AfterFire verifies the scheduler is reusable after firing.
func TestReschedule_AfterFire(t *testing.T) {
	var c counter
	s := New(10*time.Millisecond, c.full, c.partial)

	s.ScheduleFull()
	time.Sleep(50 * time.Millisecond)
	s.ScheduleFull()
	time.Sleep(50 * time.Millisecond)

	if got := c.fullCount(); got != 2 {
		t.Errorf("full fired %d times, want 2", got)
	}
}
