package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteSetMode(t *testing.T) {
	m, err := ParseRemoteSetMode("value")
	require.NoError(t, err)
	assert.Equal(t, RemoteSetValue, m)

	m, err = ParseRemoteSetMode("toggle")
	require.NoError(t, err)
	assert.Equal(t, RemoteSetToggle, m)

	_, err = ParseRemoteSetMode("flip")
	assert.Error(t, err)
}

func TestRemoteGetPublishesImmediately(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.closed = true

	h.sync.Handle(Event{Kind: EventRemoteGet, NodeID: "intercom", State: StatePowerModuleRelay})

	assert.Equal(t, []bool{true}, h.pub.relay, "published without waiting for the scheduler")
}

func TestRemoteGetIndependentOfHeartbeat(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.policy.StartHeartbeat()
	h.advance(time.Minute)
	require.Len(t, h.pub.relay, 1)

	h.sync.OnRemoteGet("intercom", StatePowerModuleRelay)
	assert.Len(t, h.pub.relay, 2)

	// The heartbeat schedule is unchanged by the get.
	h.advance(4 * time.Minute)
	assert.Len(t, h.pub.relay, 3)
}

func TestRemoteIgnoresOtherStates(t *testing.T) {
	h := newHarness(t, RemoteSetValue)

	h.sync.OnRemoteGet("intercom", StateLED)
	h.sync.OnRemoteSet("intercom", StateLED, true)
	h.sync.OnRemoteSet("intercom", StateID(200), true)
	h.advance(200 * time.Millisecond)

	assert.Empty(t, h.pub.relay)
	assert.Empty(t, h.pins.writes)
}

func TestRemoteIgnoresOtherNodes(t *testing.T) {
	h := newHarness(t, RemoteSetValue)

	h.sync.OnRemoteGet("garage", StatePowerModuleRelay)
	h.sync.OnRemoteSet("garage", StatePowerModuleRelay, true)
	h.advance(200 * time.Millisecond)

	assert.Empty(t, h.pub.relay)
	assert.Equal(t, PulseIdle, h.actuator.Phase())
	assert.Equal(t, 0, h.actuator.Pulses())
}

func TestRemoteSetValueDrivesWhenDifferent(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.closed = false

	h.sync.Handle(Event{Kind: EventRemoteSet, NodeID: "intercom", State: StatePowerModuleRelay, Value: true})
	h.sched.RunDue()

	assert.Equal(t, []DrivePin{PinClose}, h.pins.high())
	assert.Empty(t, h.pub.relay)
}

func TestRemoteSetValueAcknowledgesWhenEqual(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.closed = true

	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, true)
	h.advance(200 * time.Millisecond)

	assert.Equal(t, 0, h.actuator.Pulses())
	assert.Equal(t, []bool{true}, h.pub.relay)
}

func TestRemoteSetToggleIgnoresValue(t *testing.T) {
	h := newHarness(t, RemoteSetToggle)
	h.pins.closed = true

	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, true)
	h.sched.RunDue()

	assert.Equal(t, []DrivePin{PinOpen}, h.pins.high())
	h.advance(100 * time.Millisecond)
	assert.Equal(t, 1, h.actuator.Pulses())
}

func TestRemoteSetDuringPulseCoalesced(t *testing.T) {
	h := newHarness(t, RemoteSetToggle)

	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, true)
	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, false)
	h.advance(200 * time.Millisecond)

	assert.Equal(t, 1, h.actuator.Pulses())
}

func TestRemoteSetDuringPendingPulseAppliedAfterwards(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.latching = true
	h.pins.closed = true

	// A local press starts opening the relay; the set arrives before it runs.
	require.True(t, h.actuator.RequestToggle())
	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, true)

	value, ok := h.sync.Pending()
	require.True(t, ok)
	assert.True(t, value)
	assert.Empty(t, h.pub.relay, "no acknowledgement from a stale position")

	h.advance(400 * time.Millisecond)

	assert.True(t, h.pins.closed, "relay ends at the requested value")
	assert.Equal(t, 2, h.actuator.Pulses())
	assert.Equal(t, PulseIdle, h.actuator.Phase())
	_, ok = h.sync.Pending()
	assert.False(t, ok)
}

func TestRemoteSetDuringActivePulseAppliedAfterwards(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.latching = true
	h.pins.closed = true

	require.True(t, h.actuator.RequestToggle())
	h.sched.RunDue()
	require.Equal(t, PulseActive, h.actuator.Phase())

	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, true)
	h.advance(400 * time.Millisecond)

	assert.True(t, h.pins.closed)
	assert.Equal(t, 2, h.actuator.Pulses())
}

func TestRemoteSetDuringPulseMatchingOutcomeAcknowledged(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.latching = true
	h.pins.closed = true

	require.True(t, h.actuator.RequestToggle())
	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, false)
	h.advance(400 * time.Millisecond)

	assert.False(t, h.pins.closed)
	assert.Equal(t, 1, h.actuator.Pulses())
	assert.Equal(t, []bool{false}, h.pub.relay)
}

func TestRemoteSetDuringPulseLastValueWins(t *testing.T) {
	h := newHarness(t, RemoteSetValue)
	h.pins.latching = true
	h.pins.closed = true

	require.True(t, h.actuator.RequestToggle())
	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, true)
	h.sync.OnRemoteSet("intercom", StatePowerModuleRelay, false)
	h.advance(400 * time.Millisecond)

	assert.False(t, h.pins.closed)
	assert.Equal(t, 1, h.actuator.Pulses())
	assert.Equal(t, []bool{false}, h.pub.relay)
}
