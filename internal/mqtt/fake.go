package mqtt

import (
	"github.com/sweeney/intercom-node/internal/logic"
)

// TemperatureReading is one recorded temperature publication.
type TemperatureReading struct {
	Channel string
	Celsius float64
}

// FakePublisher records published state for test assertions.
type FakePublisher struct {
	// RelayStates contains every relay state that was published.
	RelayStates []bool

	// BellCounts contains every bell counter that was published.
	BellCounts []uint16

	// Temperatures contains every temperature that was published.
	Temperatures []TemperatureReading

	// Pairings contains every pairing announce.
	Pairings []PairingPayload

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by the state publish methods.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler func(logic.Event)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishRelayState records the relay state.
func (f *FakePublisher) PublishRelayState(closed bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.RelayStates = append(f.RelayStates, closed)
	return nil
}

// PublishBellCount records the bell counter.
func (f *FakePublisher) PublishBellCount(count uint16) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.BellCounts = append(f.BellCounts, count)
	return nil
}

// PublishTemperature records the reading.
func (f *FakePublisher) PublishTemperature(channel string, celsius float64) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Temperatures = append(f.Temperatures, TemperatureReading{Channel: channel, Celsius: celsius})
	return nil
}

// BeginPairing records the announce.
func (f *FakePublisher) BeginPairing(firmware, version string) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Pairings = append(f.Pairings, PairingPayload{Firmware: firmware, Version: version})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Subscribe stores the command handler.
func (f *FakePublisher) Subscribe(handler func(logic.Event)) error {
	f.handler = handler
	return nil
}

// Deliver simulates an inbound command message, parsed as the real
// publisher would parse it.
func (f *FakePublisher) Deliver(prefix, topic string, payload []byte, codec Codec) error {
	ev, err := ParseCommand(prefix, topic, payload, codec)
	if err != nil {
		return err
	}
	if f.handler != nil {
		f.handler(ev)
	}
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded publications.
func (f *FakePublisher) Reset() {
	f.RelayStates = nil
	f.BellCounts = nil
	f.Temperatures = nil
	f.Pairings = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
