package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler() (*Scheduler, *ManualClock) {
	clock := NewManualClock(epoch)
	return New(clock.Now, zap.NewNop()), clock
}

func TestRegisterHasNoDeadline(t *testing.T) {
	s, _ := newTestScheduler()
	runs := 0
	id := s.Register(func() { runs++ })

	assert.Equal(t, Infinity, s.Deadline(id))
	s.RunDue()
	assert.Equal(t, 0, runs)
}

func TestPlanNowRunsOnNextPass(t *testing.T) {
	s, _ := newTestScheduler()
	runs := 0
	id := s.Register(func() { runs++ })

	s.PlanNow(id)
	s.RunDue()
	assert.Equal(t, 1, runs)

	// One plan, one run.
	s.RunDue()
	assert.Equal(t, 1, runs)
	assert.Equal(t, Infinity, s.Deadline(id))
}

func TestPlanRelativeWaitsForDeadline(t *testing.T) {
	s, clock := newTestScheduler()
	runs := 0
	id := s.Register(func() { runs++ })

	s.PlanRelative(id, 100*time.Millisecond)
	assert.Equal(t, Tick(100), s.Deadline(id))

	clock.Advance(99 * time.Millisecond)
	s.RunDue()
	assert.Equal(t, 0, runs)

	clock.Advance(time.Millisecond)
	s.RunDue()
	assert.Equal(t, 1, runs)
}

func TestPlanCurrentRelativeMakesTaskPeriodic(t *testing.T) {
	s, clock := newTestScheduler()
	var ticks []Tick
	s.RegisterAt(func() {
		ticks = append(ticks, s.SpinTick())
		s.PlanCurrentRelative(time.Second)
	}, 0)

	RunFor(s, clock, 3*time.Second, 100*time.Millisecond)

	assert.Equal(t, []Tick{0, 1000, 2000, 3000}, ticks)
}

func TestPlanCurrentRelativeOutsideTaskIsNoop(t *testing.T) {
	s, _ := newTestScheduler()
	id := s.Register(func() {})

	s.PlanCurrentRelative(time.Second)
	assert.Equal(t, Infinity, s.Deadline(id))
	assert.Equal(t, NoTask, s.Current())
}

func TestCancel(t *testing.T) {
	s, clock := newTestScheduler()
	runs := 0
	id := s.Register(func() { runs++ })

	s.PlanRelative(id, 10*time.Millisecond)
	s.Cancel(id)
	clock.Advance(time.Second)
	s.RunDue()

	assert.Equal(t, 0, runs)
}

func TestUnregisterReusesSlot(t *testing.T) {
	s, _ := newTestScheduler()
	a := s.Register(func() {})
	s.Register(func() {})

	s.Unregister(a)
	c := s.Register(func() {})
	assert.Equal(t, a, c)
}

func TestPlanUnknownTaskIgnored(t *testing.T) {
	s, _ := newTestScheduler()
	s.PlanNow(TaskID(42))
	assert.Equal(t, Infinity, s.NextDeadline())
}

func TestNextDeadline(t *testing.T) {
	s, _ := newTestScheduler()
	a := s.Register(func() {})
	b := s.Register(func() {})
	assert.Equal(t, Infinity, s.NextDeadline())

	s.PlanRelative(a, 500*time.Millisecond)
	s.PlanRelative(b, 200*time.Millisecond)
	assert.Equal(t, Tick(200), s.NextDeadline())
}

func TestCurrentDuringTask(t *testing.T) {
	s, _ := newTestScheduler()
	var seen TaskID = NoTask
	var id TaskID
	id = s.RegisterAt(func() { seen = s.Current() }, 0)

	s.RunDue()
	assert.Equal(t, id, seen)
	assert.Equal(t, NoTask, s.Current())
}

func TestDrainRunsPostedFunctions(t *testing.T) {
	s, _ := newTestScheduler()
	var order []int
	s.Post(func() { order = append(order, 1) })
	s.Post(func() { order = append(order, 2) })

	s.Drain()
	assert.Equal(t, []int{1, 2}, order)
}

func TestRunExecutesPostedAndStopsOnCancel(t *testing.T) {
	s := New(time.Now, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	s.Post(func() { close(done) })

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted function did not run")
	}

	cancel()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPostAfterRunReturnsDoesNotBlock(t *testing.T) {
	s := New(time.Now, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Run returned")
	}

	posted := make(chan struct{})
	go func() {
		// More than the queue holds, as a burst of edges during shutdown would.
		for i := 0; i < postQueueSize*2; i++ {
			s.Post(func() {})
		}
		close(posted)
	}()

	select {
	case <-posted:
	case <-time.After(2 * time.Second):
		t.Fatal("Post blocked after Run returned")
	}
}

func TestPostBlockedOnFullQueueReleasedWhenRunReturns(t *testing.T) {
	s := New(time.Now, zap.NewNop())
	for i := 0; i < postQueueSize; i++ {
		s.Post(func() {})
	}

	ran := make(chan struct{})
	released := make(chan struct{})
	go func() {
		// Blocks until the loop drains or stops.
		s.Post(func() {})
		close(released)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		cancel()
		_ = s.Run(ctx)
		close(ran)
	}()

	for _, ch := range []chan struct{}{ran, released} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("producer stuck after Run returned")
		}
	}
}

func TestRunFiresPlannedTask(t *testing.T) {
	s := New(time.Now, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{})
	id := s.Register(func() { close(fired) })
	s.PlanRelative(id, 20*time.Millisecond)

	go func() { _ = s.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("planned task did not fire")
	}
}
