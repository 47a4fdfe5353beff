package logic

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/intercom-node/internal/scheduler"
)

// PolicyConfig holds the publication thresholds.
type PolicyConfig struct {
	// RelayHeartbeat is the interval of unconditional relay state republishing.
	RelayHeartbeat time.Duration
	// TemperatureHeartbeat forces a temperature publication when nothing else has.
	TemperatureHeartbeat time.Duration
	// TemperatureDelta is the smallest change worth publishing.
	TemperatureDelta float64
	// TemperatureChannel names the thermometer in outbound topics.
	TemperatureChannel string
}

// DefaultPolicyConfig returns the thresholds of the reference firmware.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		RelayHeartbeat:       5 * time.Minute,
		TemperatureHeartbeat: 15 * time.Minute,
		TemperatureDelta:     0.2,
		TemperatureChannel:   "0:1",
	}
}

// TemperatureSample is the last temperature sent and when the next one is due
// regardless of change.
type TemperatureSample struct {
	LastPublished     float64
	NextForcedPublish scheduler.Tick
}

// Policy decides when relay, bell and temperature updates are published.
type Policy struct {
	cfg   PolicyConfig
	pins  Pins
	pub   Publisher
	sched Scheduler
	log   *zap.Logger

	heartbeatTask scheduler.TaskID
	bellCount     uint16
	temperature   TemperatureSample
	published     bool
}

// NewPolicy registers the relay heartbeat task with sched. The task is not
// planned until StartHeartbeat.
func NewPolicy(cfg PolicyConfig, pins Pins, pub Publisher, sched Scheduler, log *zap.Logger) *Policy {
	p := &Policy{
		cfg:   cfg,
		pins:  pins,
		pub:   pub,
		sched: sched,
		log:   log,
	}
	p.heartbeatTask = sched.Register(p.heartbeat)
	return p
}

// StartHeartbeat plans the first relay heartbeat for the next loop pass.
func (p *Policy) StartHeartbeat() {
	p.sched.PlanNow(p.heartbeatTask)
}

// Handle applies an input event to the publication policy. Events that do
// not concern publication are ignored.
func (p *Policy) Handle(ev Event) {
	switch ev.Kind {
	case EventRelayChanged:
		p.PublishRelayState()
	case EventBellChanged:
		p.BellActivated()
	case EventTemperature:
		p.Temperature(ev.OK, ev.Temperature)
	}
}

// PublishRelayState publishes the sensed relay position.
func (p *Policy) PublishRelayState() {
	closed, err := p.pins.Feedback()
	if err != nil {
		p.log.Warn("relay feedback read failed", zap.Error(err))
		return
	}
	if err := p.pub.PublishRelayState(closed); err != nil {
		p.log.Warn("publish relay state failed", zap.Error(err))
		return
	}
	p.log.Debug("published relay state", zap.String("state", RelayString(closed)))
}

// BellActivated publishes the current bell counter and advances it.
// The counter advances even if the publication fails.
func (p *Policy) BellActivated() {
	count := p.bellCount
	p.bellCount++
	if err := p.pub.PublishBellCount(count); err != nil {
		p.log.Warn("publish bell count failed", zap.Uint16("count", count), zap.Error(err))
		return
	}
	p.log.Info("bell", zap.Uint16("count", count))
}

// Temperature offers a sensor reading. A failed read or a non-finite value is
// dropped. A reading is published when it differs from the last published
// value by at least TemperatureDelta or when the forced-publish deadline has
// been reached. Returns whether the reading was published.
func (p *Policy) Temperature(ok bool, celsius float64) bool {
	if !ok {
		p.log.Debug("temperature read failed, sample dropped")
		return false
	}
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		p.log.Warn("non-finite temperature, sample dropped", zap.Float64("celsius", celsius))
		return false
	}

	now := p.sched.Tick()
	changed := changedBy(celsius, p.temperature.LastPublished, p.cfg.TemperatureDelta)
	due := now >= p.temperature.NextForcedPublish
	if !changed && !due {
		return false
	}

	if err := p.pub.PublishTemperature(p.cfg.TemperatureChannel, celsius); err != nil {
		p.log.Warn("publish temperature failed", zap.Float64("celsius", celsius), zap.Error(err))
		return false
	}
	p.temperature = TemperatureSample{
		LastPublished:     celsius,
		NextForcedPublish: now + Ticks(p.cfg.TemperatureHeartbeat),
	}
	p.published = true
	p.log.Debug("published temperature", zap.Float64("celsius", celsius), zap.Bool("changed", changed))
	return true
}

// BellCount returns the value the next bell publication will carry.
func (p *Policy) BellCount() uint16 {
	return p.bellCount
}

// LastTemperature returns the temperature sample state and whether any
// temperature has been published yet.
func (p *Policy) LastTemperature() (TemperatureSample, bool) {
	return p.temperature, p.published
}

// changedBy compares in whole millidegrees, the resolution of the sensor, so
// a step of exactly delta counts in both directions.
func changedBy(v, last, delta float64) bool {
	diff := millidegrees(v) - millidegrees(last)
	if diff < 0 {
		diff = -diff
	}
	return diff >= millidegrees(delta)
}

func millidegrees(v float64) int64 {
	return int64(math.Round(v * 1000))
}

func (p *Policy) heartbeat() {
	p.PublishRelayState()
	p.sched.PlanCurrentRelative(p.cfg.RelayHeartbeat)
}
