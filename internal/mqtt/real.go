package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/intercom-node/internal/logic"
)

// DefaultBufferSize is how many messages are kept while the broker is unreachable.
const DefaultBufferSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	NodeID     string
	Encoding   Encoding
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	prefix string
	codec  Codec
	log    *zap.Logger

	mu        sync.Mutex
	out       *outbox
	handler   func(logic.Event)
	connected bool // at least one successful connection
}

// NewRealPublisher creates a publisher for the given broker and starts
// connecting. If the broker does not answer within 10s the publisher keeps
// retrying in the background and buffers until it does.
func NewRealPublisher(opts Options, log *zap.Logger) (*RealPublisher, error) {
	codec, err := NewCodec(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		topics: NewTopics(opts.Prefix, opts.NodeID),
		prefix: opts.Prefix,
		codec:  codec,
		log:    log,
		out:    newOutbox(opts.BufferSize),
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System(), string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn("mqtt broker not reachable yet, buffering", zap.String("broker", opts.Broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// PublishRelayState sends the relay position.
func (p *RealPublisher) PublishRelayState(closed bool) error {
	return p.publishValue(p.topics.RelayState(), closed, true)
}

// PublishBellCount sends the bell event counter.
func (p *RealPublisher) PublishBellCount(count uint16) error {
	return p.publishValue(p.topics.BellCount(), count, false)
}

// PublishTemperature sends a thermometer reading.
func (p *RealPublisher) PublishTemperature(channel string, celsius float64) error {
	return p.publishValue(p.topics.Temperature(channel), celsius, true)
}

// BeginPairing publishes the retained firmware announce.
func (p *RealPublisher) BeginPairing(firmware, version string) error {
	payload, err := p.codec.Marshal(PairingPayload{Firmware: firmware, Version: version})
	if err != nil {
		return fmt.Errorf("format pairing payload: %w", err)
	}
	return p.publish(pending{topic: p.topics.Pairing(), payload: payload, qos: 1, retained: true, latest: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(pending{topic: p.topics.System(), payload: payload, qos: 1, retained: event.Retained})
}

// Subscribe registers handler for commands to this node. The subscription is
// renewed on every reconnect.
func (p *RealPublisher) Subscribe(handler func(logic.Event)) error {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		return nil
	}
	return p.subscribe()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

// publishValue sends a node value at QoS 0, not retained. A state value
// queued while offline is replaced by a newer one.
func (p *RealPublisher) publishValue(topic string, v any, state bool) error {
	payload, err := p.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(pending{topic: topic, payload: payload, latest: state})
}

func (p *RealPublisher) publish(m pending) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		dropped := p.out.add(m)
		queued := p.out.len()
		p.mu.Unlock()
		if dropped {
			p.log.Warn("mqtt outbox full, dropping oldest", zap.Int("queued", queued))
		}
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) subscribe() error {
	token := p.client.Subscribe(p.topics.Commands(), 1, p.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.topics.Commands(), err)
	}
	return nil
}

func (p *RealPublisher) onMessage(_ paho.Client, msg paho.Message) {
	ev, err := ParseCommand(p.prefix, msg.Topic(), msg.Payload(), p.codec)
	if err != nil {
		p.log.Debug("command ignored", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// onConnect runs on a paho goroutine after every (re)connection.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	queued := p.out.flush()
	hasHandler := p.handler != nil
	p.mu.Unlock()

	p.log.Info("mqtt connected", zap.Bool("reconnect", reconnect), zap.Int("replayed", len(queued)))

	if hasHandler {
		if err := p.subscribe(); err != nil {
			p.log.Warn("resubscribe failed", zap.Error(err))
		}
	}

	for _, m := range queued {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(p.topics.System(), 1, false, payload)
	}
}
