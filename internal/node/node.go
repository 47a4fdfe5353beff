// Package node wires the relay actuator, the publication policy and the
// remote state sync onto one cooperative scheduler.
package node

import (
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/intercom-node/internal/gpio"
	"github.com/sweeney/intercom-node/internal/logic"
	"github.com/sweeney/intercom-node/internal/mqtt"
	"github.com/sweeney/intercom-node/internal/scheduler"
	"github.com/sweeney/intercom-node/internal/sensor"
	"github.com/sweeney/intercom-node/internal/status"
)

// Transport is what the node needs from the coordinator link.
type Transport interface {
	logic.Publisher
	BeginPairing(firmware, version string) error
}

// Config holds the node parameters.
type Config struct {
	NodeID              string
	Firmware            string
	Version             string
	PulseWidth          time.Duration
	TemperatureInterval time.Duration
	RemoteSetMode       logic.RemoteSetMode
	Policy              logic.PolicyConfig
}

// DefaultConfig returns the parameters of the reference firmware.
func DefaultConfig(nodeID string) Config {
	return Config{
		NodeID:              nodeID,
		Firmware:            "intercom",
		Version:             "1.0",
		PulseWidth:          logic.DefaultPulseWidth,
		TemperatureInterval: 10 * time.Second,
		RemoteSetMode:       logic.RemoteSetValue,
		Policy:              logic.DefaultPolicyConfig(),
	}
}

// Node owns all device state. Every method must run on the scheduler goroutine.
type Node struct {
	cfg    Config
	sched  *scheduler.Scheduler
	pins   logic.Pins
	pub    Transport
	reader sensor.Reader
	log    *zap.Logger

	actuator *logic.Actuator
	policy   *logic.Policy
	sync     *logic.Sync

	sampleTask scheduler.TaskID
}

// New builds the components and registers their tasks. Nothing is planned
// until Start.
func New(cfg Config, sched *scheduler.Scheduler, pins logic.Pins, pub Transport, reader sensor.Reader, log *zap.Logger) *Node {
	n := &Node{
		cfg:    cfg,
		sched:  sched,
		pins:   pins,
		pub:    pub,
		reader: reader,
		log:    log,
	}
	n.actuator = logic.NewActuator(pins, sched, cfg.PulseWidth, log.Named("actuator"))
	n.policy = logic.NewPolicy(cfg.Policy, pins, pub, sched, log.Named("policy"))
	n.sync = logic.NewSync(cfg.NodeID, cfg.RemoteSetMode, pins, n.actuator, n.policy, log.Named("sync"))
	n.sampleTask = sched.Register(n.sample)
	return n
}

// Start puts the coil lines in their quiescent state, plans the relay
// heartbeat and the temperature sampling, and announces the node.
func (n *Node) Start() {
	for _, pin := range []logic.DrivePin{logic.PinClose, logic.PinOpen} {
		if err := n.pins.SetOutput(pin, false); err != nil {
			n.log.Warn("reset drive line failed", zap.Stringer("pin", pin), zap.Error(err))
		}
	}
	n.policy.StartHeartbeat()
	if n.reader != nil {
		n.sched.PlanNow(n.sampleTask)
	}
	if err := n.pub.BeginPairing(n.cfg.Firmware, n.cfg.Version); err != nil {
		n.log.Warn("pairing announce failed", zap.Error(err))
	}
	n.log.Info("node started",
		zap.String("node_id", n.cfg.NodeID),
		zap.String("firmware", n.cfg.Firmware),
		zap.String("version", n.cfg.Version),
		zap.String("remote_set_mode", string(n.cfg.RemoteSetMode)))
}

// Dispatch routes one input event to the component that owns it.
func (n *Node) Dispatch(ev logic.Event) {
	n.log.Debug("event", zap.Stringer("kind", ev.Kind))
	switch ev.Kind {
	case logic.EventButtonPress:
		if !n.actuator.RequestToggle() {
			n.log.Debug("toggle ignored, pulse in flight")
		}
	case logic.EventRelayChanged:
		n.log.Info("relay changed", zap.String("state", logic.RelayString(ev.Closed)))
		n.policy.Handle(ev)
	case logic.EventBellChanged, logic.EventTemperature:
		n.policy.Handle(ev)
	case logic.EventRemoteSet, logic.EventRemoteGet:
		n.sync.Handle(ev)
	default:
		n.log.Debug("unhandled event", zap.Int("kind", int(ev.Kind)))
	}
}

// Post hands an event over from another goroutine.
func (n *Node) Post(ev logic.Event) {
	n.sched.Post(func() { n.Dispatch(ev) })
}

// Listen subscribes the node to coordinator commands. They arrive on a
// transport goroutine and are handed over through Post.
func (n *Node) Listen(sub mqtt.Subscriber) error {
	return sub.Subscribe(n.Post)
}

// Handlers returns GPIO edge handlers that feed the node through the
// scheduler. The node may be assigned after the handlers are built, as long
// as it is set before the scheduler runs.
func Handlers(sched *scheduler.Scheduler, n **Node) gpio.Handlers {
	post := func(ev logic.Event) {
		sched.Post(func() { (*n).Dispatch(ev) })
	}
	return gpio.Handlers{
		Relay:  func(closed bool) { post(logic.Event{Kind: logic.EventRelayChanged, Closed: closed}) },
		Bell:   func(closed bool) { post(logic.Event{Kind: logic.EventBellChanged, Closed: closed}) },
		Button: func() { post(logic.Event{Kind: logic.EventButtonPress}) },
	}
}

// State returns the status view of the node.
func (n *Node) State() status.NodeState {
	s := status.NodeState{
		Pulse:     n.actuator.Phase(),
		Pulses:    n.actuator.Pulses(),
		BellCount: n.policy.BellCount(),
	}
	if closed, err := n.pins.Feedback(); err == nil {
		s.Relay = closed
		s.RelayKnown = true
	}
	if t, ok := n.policy.LastTemperature(); ok {
		s.Temperature = t.LastPublished
		s.TemperatureSet = true
	}
	return s
}

func (n *Node) sample() {
	celsius, err := n.reader.ReadCelsius()
	if err != nil {
		n.log.Debug("temperature read failed", zap.Error(err))
	}
	n.Dispatch(logic.Event{Kind: logic.EventTemperature, Temperature: celsius, OK: err == nil})
	n.sched.PlanCurrentRelative(n.cfg.TemperatureInterval)
}
