package scheduler

import "time"

// ManualClock is a test clock that only moves when told to.
type ManualClock struct {
	now time.Time
}

// NewManualClock creates a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current fake time.
func (c *ManualClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Step runs one loop pass: posted functions first, then due tasks.
func Step(s *Scheduler) {
	s.Drain()
	s.RunDue()
}

// RunFor advances clock by step until d has elapsed, running a loop pass at
// the starting time and after every step.
func RunFor(s *Scheduler, clock *ManualClock, d, step time.Duration) {
	Step(s)
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		clock.Advance(step)
		Step(s)
	}
}
