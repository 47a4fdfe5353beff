// Package mqtt links the node to its coordinator over MQTT, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/intercom-node/internal/logic"
)

// DefaultPrefix is the first topic level of every node topic.
const DefaultPrefix = "node"

// Publisher sends node state and lifecycle events to the coordinator.
type Publisher interface {
	logic.Publisher

	// BeginPairing announces the firmware to the coordinator.
	BeginPairing(firmware, version string) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers coordinator commands.
type Subscriber interface {
	// Subscribe registers handler for remote set/get commands addressed to
	// this node. The handler runs on a transport goroutine.
	Subscribe(handler func(logic.Event)) error
}

var (
	_ Publisher        = (*RealPublisher)(nil)
	_ Subscriber       = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
	_ Publisher        = (*FakePublisher)(nil)
	_ Subscriber       = (*FakePublisher)(nil)
)

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ErrUnknownTopic is returned for a command topic this firmware does not understand.
var ErrUnknownTopic = errors.New("unknown command topic")

// Topics builds the topic names of one node.
type Topics struct {
	prefix string
	node   string
}

// NewTopics creates topic names under prefix/nodeID.
func NewTopics(prefix, nodeID string) Topics {
	return Topics{prefix: prefix, node: nodeID}
}

func (t Topics) base() string { return t.prefix + "/" + t.node }

// RelayState is where the relay position is published.
func (t Topics) RelayState() string { return t.base() + "/relay/-/state" }

// BellCount is where the bell event counter is published.
func (t Topics) BellCount() string { return t.base() + "/push-button/-/event-count" }

// Temperature is where readings of the given thermometer channel are published.
func (t Topics) Temperature(channel string) string {
	return t.base() + "/thermometer/" + channel + "/temperature"
}

// Pairing is where the firmware announce is published.
func (t Topics) Pairing() string { return t.base() + "/pairing" }

// System is where lifecycle events are published.
func (t Topics) System() string { return t.base() + "/system" }

// Commands is the subscription filter for set/get commands to this node.
func (t Topics) Commands() string { return t.base() + "/+/+/state/+" }

// subjects maps the subject level of a command topic to a state ID.
var subjects = map[string]logic.StateID{
	"relay": logic.StatePowerModuleRelay,
	"led":   logic.StateLED,
}

// ParseCommand turns a command message into a remote set/get event.
// Topics look like <prefix>/<node>/<subject>/<instance>/state/{set,get}.
func ParseCommand(prefix, topic string, payload []byte, codec Codec) (logic.Event, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return logic.Event{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 5 || parts[3] != "state" {
		return logic.Event{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	state, ok := subjects[parts[1]]
	if !ok {
		return logic.Event{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	ev := logic.Event{NodeID: parts[0], State: state}
	switch parts[4] {
	case "get":
		ev.Kind = logic.EventRemoteGet
	case "set":
		ev.Kind = logic.EventRemoteSet
		if err := codec.Unmarshal(payload, &ev.Value); err != nil {
			return logic.Event{}, fmt.Errorf("decode set payload on %s: %w", topic, err)
		}
	default:
		return logic.Event{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return ev, nil
}

// PairingPayload is the firmware announce.
type PairingPayload struct {
	Firmware string `json:"firmware"`
	Version  string `json:"version"`
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes if the node drops off.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE"}})
	return data
}
