package logic

import (
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/intercom-node/internal/scheduler"
)

// DefaultPulseWidth is how long a coil line stays energized.
const DefaultPulseWidth = 100 * time.Millisecond

// Actuator toggles a bistable relay with a two-phase pulse: the set phase
// energizes the coil opposite to the sensed position, the clear phase
// de-energizes both coils PulseWidth later. At most one pulse is in flight.
type Actuator struct {
	pins       Pins
	sched      Scheduler
	log        *zap.Logger
	pulseWidth time.Duration

	setTask   scheduler.TaskID
	clearTask scheduler.TaskID
	phase     PulsePhase
	pulses    int
	onIdle    func()
}

// NewActuator registers the set and clear tasks with sched. Neither is planned.
func NewActuator(pins Pins, sched Scheduler, pulseWidth time.Duration, log *zap.Logger) *Actuator {
	a := &Actuator{
		pins:       pins,
		sched:      sched,
		log:        log,
		pulseWidth: pulseWidth,
	}
	a.setTask = sched.Register(a.setPhase)
	a.clearTask = sched.Register(a.clearPhase)
	return a
}

// RequestToggle starts a pulse that flips the relay. A request made while a
// pulse is pending or active is coalesced into it and RequestToggle returns false.
func (a *Actuator) RequestToggle() bool {
	if a.phase != PulseIdle {
		a.log.Debug("toggle coalesced", zap.Stringer("phase", a.phase))
		return false
	}
	a.phase = PulsePending
	a.sched.PlanNow(a.setTask)
	return true
}

// OnIdle sets fn to run each time a pulse finishes or is aborted, after the
// actuator is back in PulseIdle.
func (a *Actuator) OnIdle(fn func()) {
	a.onIdle = fn
}

// Phase returns the current pulse phase.
func (a *Actuator) Phase() PulsePhase {
	return a.phase
}

// Pulses returns how many set phases have energized a coil.
func (a *Actuator) Pulses() int {
	return a.pulses
}

func (a *Actuator) setPhase() {
	closed, err := a.pins.Feedback()
	if err != nil {
		a.log.Warn("relay feedback read failed, pulse aborted", zap.Error(err))
		a.idle()
		return
	}

	// Release the opposite line first so both are never high together.
	on, off := PinClose, PinOpen
	if closed {
		on, off = PinOpen, PinClose
	}
	a.write(off, false)
	a.write(on, true)

	a.phase = PulseActive
	a.pulses++
	a.log.Info("relay pulse", zap.String("from", RelayString(closed)), zap.Stringer("line", on))
	a.sched.PlanRelative(a.clearTask, a.pulseWidth)
}

func (a *Actuator) clearPhase() {
	a.write(PinClose, false)
	a.write(PinOpen, false)
	a.idle()
}

func (a *Actuator) idle() {
	a.phase = PulseIdle
	if a.onIdle != nil {
		a.onIdle()
	}
}

func (a *Actuator) write(pin DrivePin, on bool) {
	if err := a.pins.SetOutput(pin, on); err != nil {
		a.log.Warn("relay line write failed", zap.Stringer("line", pin), zap.Bool("on", on), zap.Error(err))
	}
}
