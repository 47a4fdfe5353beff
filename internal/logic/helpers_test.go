package logic

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/intercom-node/internal/scheduler"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// write is one recorded SetOutput call.
type write struct {
	pin DrivePin
	on  bool
}

// testPins records every line write and fails the test if both lines are ever high.
type testPins struct {
	t           *testing.T
	closed      bool
	feedbackErr error
	latching    bool // energizing a coil moves the sensed position
	lines       [2]bool
	writes      []write
}

func (p *testPins) Feedback() (bool, error) {
	if p.feedbackErr != nil {
		return false, p.feedbackErr
	}
	return p.closed, nil
}

func (p *testPins) SetOutput(pin DrivePin, on bool) error {
	p.lines[pin] = on
	p.writes = append(p.writes, write{pin, on})
	if p.latching && on {
		p.closed = pin == PinClose
	}
	if p.lines[PinClose] && p.lines[PinOpen] {
		p.t.Errorf("both drive lines high after write %v", write{pin, on})
	}
	return nil
}

func (p *testPins) high() []DrivePin {
	var out []DrivePin
	for pin, on := range p.lines {
		if on {
			out = append(out, DrivePin(pin))
		}
	}
	return out
}

// testPublisher records publications.
type testPublisher struct {
	relay        []bool
	bell         []uint16
	temperatures []float64
	channels     []string
	err          error
}

func (p *testPublisher) PublishRelayState(closed bool) error {
	if p.err != nil {
		return p.err
	}
	p.relay = append(p.relay, closed)
	return nil
}

func (p *testPublisher) PublishBellCount(count uint16) error {
	if p.err != nil {
		return p.err
	}
	p.bell = append(p.bell, count)
	return nil
}

func (p *testPublisher) PublishTemperature(channel string, celsius float64) error {
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channel)
	p.temperatures = append(p.temperatures, celsius)
	return nil
}

var errPublish = errors.New("broker unavailable")

type harness struct {
	clock    *scheduler.ManualClock
	sched    *scheduler.Scheduler
	pins     *testPins
	pub      *testPublisher
	actuator *Actuator
	policy   *Policy
	sync     *Sync
}

func newHarness(t *testing.T, mode RemoteSetMode) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	clock := scheduler.NewManualClock(epoch)
	sched := scheduler.New(clock.Now, log)
	pins := &testPins{t: t}
	pub := &testPublisher{}
	actuator := NewActuator(pins, sched, DefaultPulseWidth, log)
	policy := NewPolicy(DefaultPolicyConfig(), pins, pub, sched, log)
	return &harness{
		clock:    clock,
		sched:    sched,
		pins:     pins,
		pub:      pub,
		actuator: actuator,
		policy:   policy,
		sync:     NewSync("intercom", mode, pins, actuator, policy, log),
	}
}

// advance moves time forward in 10ms steps, running the scheduler after each.
func (h *harness) advance(d time.Duration) {
	scheduler.RunFor(h.sched, h.clock, d, 10*time.Millisecond)
}
