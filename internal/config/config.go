// Package config loads the intercom-node settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/sweeney/intercom-node/internal/gpio"
	"github.com/sweeney/intercom-node/internal/logic"
	"github.com/sweeney/intercom-node/internal/mqtt"
	"github.com/sweeney/intercom-node/internal/sensor"
	"github.com/sweeney/intercom-node/internal/status"
	"github.com/sweeney/intercom-node/internal/web"
)

// Config is the full daemon configuration.
type Config struct {
	NodeID   string `env:"NODE_ID"`
	Firmware string `env:"FIRMWARE" envDefault:"intercom"`
	Version  string `env:"VERSION" envDefault:"1.0"`

	Broker   string `env:"MQTT_BROKER" envDefault:"tcp://192.168.1.200:1883"`
	WSBroker string `env:"MQTT_WS_BROKER" envDefault:"=broker"`
	MQTTJS   string `env:"MQTT_JS" envDefault:"https://unpkg.com/mqtt@5/dist/mqtt.min.js"`
	Prefix   string `env:"MQTT_TOPIC_PREFIX"`
	Encoding string `env:"PAYLOAD_ENCODING" envDefault:"json"`

	Chip        string `env:"GPIO_CHIP" envDefault:"gpiochip0"`
	PinClose    int    `env:"PIN_RELAY_CLOSE"`
	PinOpen     int    `env:"PIN_RELAY_OPEN"`
	PinFeedback int    `env:"PIN_RELAY_FEEDBACK"`
	PinBell     int    `env:"PIN_BELL"`
	PinButton   int    `env:"PIN_BUTTON"`

	RelayPulse       time.Duration `env:"RELAY_PULSE" envDefault:"100ms"`
	FeedbackDebounce time.Duration `env:"FEEDBACK_DEBOUNCE" envDefault:"50ms"`
	BellDebounce     time.Duration `env:"BELL_DEBOUNCE" envDefault:"1s"`
	ButtonDebounce   time.Duration `env:"BUTTON_DEBOUNCE" envDefault:"20ms"`

	RelayHeartbeat       time.Duration `env:"RELAY_HEARTBEAT" envDefault:"5m"`
	TemperatureInterval  time.Duration `env:"TEMPERATURE_INTERVAL" envDefault:"10s"`
	TemperatureHeartbeat time.Duration `env:"TEMPERATURE_HEARTBEAT" envDefault:"15m"`
	TemperatureDelta     float64       `env:"TEMPERATURE_DELTA" envDefault:"0.2"`
	TemperatureChannel   string        `env:"TEMPERATURE_CHANNEL" envDefault:"0:1"`
	TemperaturePath      string        `env:"TEMPERATURE_PATH"`

	RemoteSetMode string `env:"REMOTE_SET_MODE" envDefault:"value"`
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Defaults returns the settings that default to the reference board wiring
// and topic layout. Every other default is in the env tags.
func Defaults() Config {
	pins := gpio.DefaultPins()
	return Config{
		Prefix:          mqtt.DefaultPrefix,
		PinClose:        pins.Close,
		PinOpen:         pins.Open,
		PinFeedback:     pins.Feedback,
		PinBell:         pins.Bell,
		PinButton:       pins.Button,
		TemperaturePath: sensor.DefaultPath,
	}
}

// Load parses the environment over Defaults and fills in the node ID from
// the hostname when it is not set.
func Load() (Config, error) {
	cfg := Defaults()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.NodeID == "" {
		host, _ := os.Hostname()
		cfg.NodeID = ResolveNodeID(host)
	}
	return cfg, cfg.Validate()
}

// ResolveNodeID derives a topic-safe node ID from a hostname, falling back to
// a random one.
func ResolveNodeID(hostname string) string {
	if id := slug.Make(hostname); id != "" {
		return id
	}
	return "intercom-" + uuid.NewString()[:8]
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.NodeID == "" {
		errs = append(errs, errors.New("node id is empty"))
	}
	if c.RelayPulse <= 0 {
		errs = append(errs, fmt.Errorf("relay pulse must be positive, got %v", c.RelayPulse))
	}
	if c.RelayHeartbeat <= 0 {
		errs = append(errs, fmt.Errorf("relay heartbeat must be positive, got %v", c.RelayHeartbeat))
	}
	if c.TemperatureInterval <= 0 {
		errs = append(errs, fmt.Errorf("temperature interval must be positive, got %v", c.TemperatureInterval))
	}
	if c.TemperatureHeartbeat <= 0 {
		errs = append(errs, fmt.Errorf("temperature heartbeat must be positive, got %v", c.TemperatureHeartbeat))
	}
	if c.TemperatureDelta < 0 {
		errs = append(errs, fmt.Errorf("temperature delta must not be negative, got %v", c.TemperatureDelta))
	}
	if _, err := mqtt.NewCodec(mqtt.Encoding(c.Encoding)); err != nil {
		errs = append(errs, err)
	}
	if _, err := logic.ParseRemoteSetMode(c.RemoteSetMode); err != nil {
		errs = append(errs, err)
	}

	pins := map[int]string{}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"PIN_RELAY_CLOSE", c.PinClose},
		{"PIN_RELAY_OPEN", c.PinOpen},
		{"PIN_RELAY_FEEDBACK", c.PinFeedback},
		{"PIN_BELL", c.PinBell},
		{"PIN_BUTTON", c.PinButton},
	} {
		if p.pin < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", p.name, p.pin))
			continue
		}
		if other, dup := pins[p.pin]; dup {
			errs = append(errs, fmt.Errorf("%s and %s share line %d", other, p.name, p.pin))
			continue
		}
		pins[p.pin] = p.name
	}
	return errors.Join(errs...)
}

// GPIO returns the board options.
func (c Config) GPIO() gpio.Options {
	return gpio.Options{
		Chip: c.Chip,
		Pins: gpio.Pins{
			Close:    c.PinClose,
			Open:     c.PinOpen,
			Feedback: c.PinFeedback,
			Bell:     c.PinBell,
			Button:   c.PinButton,
		},
		Debounce: gpio.Debounce{
			Feedback: c.FeedbackDebounce,
			Bell:     c.BellDebounce,
			Button:   c.ButtonDebounce,
		},
	}
}

// MQTT returns the publisher options.
func (c Config) MQTT() mqtt.Options {
	return mqtt.Options{
		Broker:     c.Broker,
		ClientID:   c.Firmware + "-" + c.NodeID,
		Prefix:     c.Prefix,
		NodeID:     c.NodeID,
		Encoding:   mqtt.Encoding(c.Encoding),
		BufferSize: mqtt.DefaultBufferSize,
	}
}

// Policy returns the publication thresholds.
func (c Config) Policy() logic.PolicyConfig {
	return logic.PolicyConfig{
		RelayHeartbeat:       c.RelayHeartbeat,
		TemperatureHeartbeat: c.TemperatureHeartbeat,
		TemperatureDelta:     c.TemperatureDelta,
		TemperatureChannel:   c.TemperatureChannel,
	}
}

// Status returns the settings shown on the status page. The live page
// decodes JSON and needs an MQTT.js client, so the websocket broker is
// withheld for other encodings or when MQTT_JS is empty.
func (c Config) Status() status.Config {
	topics := mqtt.NewTopics(c.Prefix, c.NodeID)
	script, _ := c.Script()
	ws := ""
	if mqtt.Encoding(c.Encoding) == mqtt.EncodingJSON && script != "" {
		ws = ResolveWSBroker(c.WSBroker, c.Broker)
	}
	return status.Config{
		NodeID:                 c.NodeID,
		Firmware:               c.Firmware,
		Version:                c.Version,
		Broker:                 c.Broker,
		Encoding:               c.Encoding,
		HTTPAddr:               c.HTTPAddr,
		WSBroker:               ws,
		ScriptURL:              script,
		RelayTopic:             topics.RelayState(),
		BellTopic:              topics.BellCount(),
		PulseMs:                c.RelayPulse.Milliseconds(),
		BellDebounceMs:         c.BellDebounce.Milliseconds(),
		RelayHeartbeatMs:       c.RelayHeartbeat.Milliseconds(),
		TemperatureIntervalMs:  c.TemperatureInterval.Milliseconds(),
		TemperatureHeartbeatMs: c.TemperatureHeartbeat.Milliseconds(),
		TemperatureDelta:       c.TemperatureDelta,
		RemoteSetMode:          c.RemoteSetMode,
	}
}

// Script resolves MQTT_JS into the URL the status page loads the MQTT.js
// client from and, for a local file, the path the web server serves it from.
func (c Config) Script() (src, file string) {
	switch {
	case c.MQTTJS == "":
		return "", ""
	case strings.HasPrefix(c.MQTTJS, "http://"), strings.HasPrefix(c.MQTTJS, "https://"):
		return c.MQTTJS, ""
	}
	return web.ScriptPath, c.MQTTJS
}

// ResolveWSBroker converts the MQTT_WS_BROKER value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables.
func ResolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
