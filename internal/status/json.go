package status

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/sweeney/intercom-node/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	NodeID        string       `json:"node_id"`
	Firmware      string       `json:"firmware"`
	Version       string       `json:"version"`
	Relay         string       `json:"relay"`
	Pulse         string       `json:"pulse"`
	Pulses        int          `json:"pulses"`
	BellCount     uint16       `json:"bell_count"`
	Temperature   *float64     `json:"temperature,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Encoding  string `json:"encoding"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PulseMs                int64   `json:"pulse_ms"`
	BellDebounceMs         int64   `json:"bell_debounce_ms"`
	RelayHeartbeatMs       int64   `json:"relay_heartbeat_ms"`
	TemperatureIntervalMs  int64   `json:"temperature_interval_ms"`
	TemperatureHeartbeatMs int64   `json:"temperature_heartbeat_ms"`
	TemperatureDelta       float64 `json:"temperature_delta"`
	RemoteSetMode          string  `json:"remote_set_mode"`
	HTTPAddr               string  `json:"http_addr"`
}

// RelayString renders the relay state, UNKNOWN until it has been read.
func RelayString(n NodeState) string {
	return lo.Ternary(n.RelayKnown, logic.RelayString(n.Relay), "UNKNOWN")
}

func buildInner(snap Snapshot) StatusInner {
	cfg := snap.Config
	inner := StatusInner{
		NodeID:        cfg.NodeID,
		Firmware:      cfg.Firmware,
		Version:       cfg.Version,
		Relay:         RelayString(snap.Node),
		Pulse:         snap.Node.Pulse.String(),
		Pulses:        snap.Node.Pulses,
		BellCount:     snap.Node.BellCount,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: cfg.Broker, Encoding: cfg.Encoding},
		Config: ConfigJSON{
			PulseMs:                cfg.PulseMs,
			BellDebounceMs:         cfg.BellDebounceMs,
			RelayHeartbeatMs:       cfg.RelayHeartbeatMs,
			TemperatureIntervalMs:  cfg.TemperatureIntervalMs,
			TemperatureHeartbeatMs: cfg.TemperatureHeartbeatMs,
			TemperatureDelta:       cfg.TemperatureDelta,
			RemoteSetMode:          cfg.RemoteSetMode,
			HTTPAddr:               cfg.HTTPAddr,
		},
	}
	if snap.Node.TemperatureSet {
		inner.Temperature = lo.ToPtr(snap.Node.Temperature)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
