// Package status provides a thread-safe status tracker for the intercom-node daemon.
// It is written from the scheduler goroutine and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/intercom-node/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	NodeID                 string
	Firmware               string
	Version                string
	Broker                 string
	Encoding               string
	HTTPAddr               string
	WSBroker               string
	ScriptURL              string
	RelayTopic             string
	BellTopic              string
	PulseMs                int64
	BellDebounceMs         int64
	RelayHeartbeatMs       int64
	TemperatureIntervalMs  int64
	TemperatureHeartbeatMs int64
	TemperatureDelta       float64
	RemoteSetMode          string
}

// NodeState is the control-logic state shown on the status page.
type NodeState struct {
	Relay          bool
	RelayKnown     bool
	Pulse          logic.PulsePhase
	Pulses         int
	BellCount      uint16
	Temperature    float64
	TemperatureSet bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Node          NodeState
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the control-logic state.
func (t *Tracker) Update(state NodeState) {
	t.mu.Lock()
	t.snap.Node = state
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
