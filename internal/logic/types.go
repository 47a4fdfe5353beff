// Package logic holds the device-state control logic of the intercom node:
// the bistable relay actuator, the publication policy and the remote
// state-sync bridge. It talks to hardware, time and the transport only
// through the interfaces declared here.
package logic

import (
	"time"

	"github.com/sweeney/intercom-node/internal/scheduler"
)

// DrivePin selects one of the two relay coil drive lines.
type DrivePin int

const (
	// PinClose energizes the coil that closes the relay.
	PinClose DrivePin = iota
	// PinOpen energizes the coil that opens the relay.
	PinOpen
)

func (p DrivePin) String() string {
	switch p {
	case PinClose:
		return "CLOSE"
	case PinOpen:
		return "OPEN"
	}
	return "UNKNOWN"
}

// StateID identifies a remotely observable node state.
type StateID uint8

const (
	// StatePowerModuleRelay is the bistable relay driven by this node.
	StatePowerModuleRelay StateID = 0
	// StateLED is reserved; nodes of this firmware ignore it.
	StateLED StateID = 1
)

// EventKind is the type of an input event.
type EventKind int

const (
	EventButtonPress EventKind = iota + 1
	EventRelayChanged
	EventBellChanged
	EventTemperature
	EventRemoteSet
	EventRemoteGet
)

func (k EventKind) String() string {
	switch k {
	case EventButtonPress:
		return "BUTTON_PRESS"
	case EventRelayChanged:
		return "RELAY_CHANGED"
	case EventBellChanged:
		return "BELL_CHANGED"
	case EventTemperature:
		return "TEMPERATURE"
	case EventRemoteSet:
		return "REMOTE_SET"
	case EventRemoteGet:
		return "REMOTE_GET"
	}
	return "UNKNOWN"
}

// Event is a single input delivered to the node. Fields not relevant to
// Kind are left zero.
type Event struct {
	Kind EventKind

	// Closed is the debounced input level for RelayChanged and BellChanged.
	Closed bool

	// Temperature and OK carry a sensor update; OK is false when the read failed.
	Temperature float64
	OK          bool

	// NodeID, State and Value address a remote command.
	NodeID string
	State  StateID
	Value  bool
}

// PulsePhase is the actuator state.
type PulsePhase int

const (
	// PulseIdle means both drive lines are low and no pulse is planned.
	PulseIdle PulsePhase = iota
	// PulsePending means the set phase is planned but has not run.
	PulsePending
	// PulseActive means one drive line is high and the clear phase is planned.
	PulseActive
)

func (p PulsePhase) String() string {
	switch p {
	case PulseIdle:
		return "IDLE"
	case PulsePending:
		return "PENDING"
	case PulseActive:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// Pins is the relay hardware as seen by the actuator and the policy engine.
type Pins interface {
	// Feedback returns true when the relay contact is closed.
	Feedback() (bool, error)
	// SetOutput drives one coil line.
	SetOutput(pin DrivePin, on bool) error
}

// Publisher sends observable state to the coordinator.
type Publisher interface {
	PublishRelayState(closed bool) error
	PublishBellCount(count uint16) error
	PublishTemperature(channel string, celsius float64) error
}

// Scheduler is the subset of the cooperative scheduler the logic uses.
type Scheduler interface {
	Register(fn scheduler.Task) scheduler.TaskID
	PlanNow(id scheduler.TaskID)
	PlanRelative(id scheduler.TaskID, d time.Duration)
	PlanCurrentRelative(d time.Duration)
	Tick() scheduler.Tick
}

// Ticks converts a duration to scheduler ticks.
func Ticks(d time.Duration) scheduler.Tick {
	return scheduler.Tick(d.Milliseconds())
}

// RelayString renders a relay level for logs and status output.
func RelayString(closed bool) string {
	if closed {
		return "CLOSED"
	}
	return "OPEN"
}
