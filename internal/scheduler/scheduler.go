// Package scheduler provides a single-threaded, tick-based task scheduler.
//
// Tasks are registered once and then planned for an absolute or relative tick.
// A planned task runs once per plan; periodic behaviour comes from a task
// re-planning itself with PlanCurrentRelative. All tasks and all functions
// handed in through Post run on the goroutine that calls Run (or RunDue), so
// the code they call needs no locking.
package scheduler

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tick is a point in scheduler time, in milliseconds since the scheduler was created.
type Tick int64

// Infinity is the deadline of a task that is registered but not planned.
const Infinity Tick = math.MaxInt64

// TaskID identifies a registered task.
type TaskID int

// NoTask is returned by Current outside of a task callback.
const NoTask TaskID = -1

// Task is a scheduled callback.
type Task func()

type entry struct {
	fn       Task
	deadline Tick
	active   bool
}

// Scheduler runs registered tasks when their deadline passes.
type Scheduler struct {
	now     func() time.Time
	start   time.Time
	tasks   []entry
	current TaskID
	spin    Tick
	posted  chan func()
	done    chan struct{}
	stop    sync.Once
	log     *zap.Logger
}

// postQueueSize bounds how many events producers may hand over between two loop passes.
const postQueueSize = 64

// New creates a Scheduler using the given clock. Tick 0 is the clock's current time.
func New(now func() time.Time, log *zap.Logger) *Scheduler {
	return &Scheduler{
		now:     now,
		start:   now(),
		current: NoTask,
		posted:  make(chan func(), postQueueSize),
		done:    make(chan struct{}),
		log:     log,
	}
}

// Register adds a task with no deadline and returns its ID.
func (s *Scheduler) Register(fn Task) TaskID {
	return s.RegisterAt(fn, Infinity)
}

// RegisterAt adds a task planned for the given tick.
func (s *Scheduler) RegisterAt(fn Task, at Tick) TaskID {
	for i := range s.tasks {
		if !s.tasks[i].active {
			s.tasks[i] = entry{fn: fn, deadline: at, active: true}
			return TaskID(i)
		}
	}
	s.tasks = append(s.tasks, entry{fn: fn, deadline: at, active: true})
	return TaskID(len(s.tasks) - 1)
}

// Unregister removes a task. Its ID may be reused by a later Register.
func (s *Scheduler) Unregister(id TaskID) {
	if !s.valid(id) {
		return
	}
	s.tasks[id] = entry{deadline: Infinity}
}

// PlanAbsolute sets the task deadline to tick. Infinity cancels a pending run.
func (s *Scheduler) PlanAbsolute(id TaskID, tick Tick) {
	if !s.valid(id) {
		s.log.Warn("plan of unknown task", zap.Int("task", int(id)))
		return
	}
	s.tasks[id].deadline = tick
}

// PlanRelative plans the task d after the current tick.
func (s *Scheduler) PlanRelative(id TaskID, d time.Duration) {
	s.PlanAbsolute(id, s.Tick()+Tick(d.Milliseconds()))
}

// PlanNow plans the task for the next loop pass.
func (s *Scheduler) PlanNow(id TaskID) {
	s.PlanAbsolute(id, 0)
}

// Cancel clears the task deadline.
func (s *Scheduler) Cancel(id TaskID) {
	s.PlanAbsolute(id, Infinity)
}

// PlanCurrentRelative re-plans the task that is currently running.
// Outside of a task callback it does nothing.
func (s *Scheduler) PlanCurrentRelative(d time.Duration) {
	if s.current == NoTask {
		return
	}
	s.PlanRelative(s.current, d)
}

// Current returns the ID of the running task, or NoTask.
func (s *Scheduler) Current() TaskID {
	return s.current
}

// Deadline returns the tick at which the task is due, Infinity if unplanned.
func (s *Scheduler) Deadline(id TaskID) Tick {
	if !s.valid(id) {
		return Infinity
	}
	return s.tasks[id].deadline
}

// Tick returns the current scheduler time.
func (s *Scheduler) Tick() Tick {
	return Tick(s.now().Sub(s.start).Milliseconds())
}

// SpinTick returns the tick captured at the start of the current loop pass.
func (s *Scheduler) SpinTick() Tick {
	return s.spin
}

// RunDue runs every task whose deadline is at or before the current tick.
// Tasks run in registration order; a task is unplanned just before it runs.
func (s *Scheduler) RunDue() {
	s.spin = s.Tick()
	for i := range s.tasks {
		e := &s.tasks[i]
		if !e.active || e.deadline > s.spin {
			continue
		}
		e.deadline = Infinity
		s.current = TaskID(i)
		e.fn()
		s.current = NoTask
	}
}

// NextDeadline returns the earliest planned deadline, Infinity if none.
func (s *Scheduler) NextDeadline() Tick {
	next := Infinity
	for _, e := range s.tasks {
		if e.active && e.deadline < next {
			next = e.deadline
		}
	}
	return next
}

// Post hands fn to the loop goroutine. Safe to call from any goroutine.
// If the loop is saturated the call blocks until there is room. Once Run
// has returned, fn is dropped instead.
func (s *Scheduler) Post(fn func()) {
	select {
	case <-s.done:
		s.log.Debug("loop stopped, posted function dropped")
		return
	default:
	}
	select {
	case s.posted <- fn:
	case <-s.done:
		s.log.Debug("loop stopped, posted function dropped")
	}
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Drain runs every function handed over through Post so far.
func (s *Scheduler) Drain() {
	for {
		select {
		case fn := <-s.posted:
			fn()
		default:
			return
		}
	}
}

// Run executes due tasks and posted functions until ctx is cancelled.
// Posts made after Run returns are dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stop.Do(func() { close(s.done) })
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		s.RunDue()

		wait := time.Duration(math.MaxInt64)
		if next := s.NextDeadline(); next != Infinity {
			wait = time.Duration(next-s.Tick()) * time.Millisecond
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.posted:
			fn()
		case <-timer.C:
		}
	}
}

func (s *Scheduler) valid(id TaskID) bool {
	return id >= 0 && int(id) < len(s.tasks) && s.tasks[id].active
}
