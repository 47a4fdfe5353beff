package logic

import (
	"fmt"

	"go.uber.org/zap"
)

// RemoteSetMode selects how a remote set command drives the relay.
type RemoteSetMode string

const (
	// RemoteSetValue drives the relay to the requested value.
	RemoteSetValue RemoteSetMode = "value"
	// RemoteSetToggle flips the relay on every set, ignoring the value.
	RemoteSetToggle RemoteSetMode = "toggle"
)

// ParseRemoteSetMode validates a mode name.
func ParseRemoteSetMode(s string) (RemoteSetMode, error) {
	switch m := RemoteSetMode(s); m {
	case RemoteSetValue, RemoteSetToggle:
		return m, nil
	}
	return "", fmt.Errorf("unknown remote set mode %q", s)
}

// Sync bridges remote get/set commands addressed to this node with the
// actuator and the publication policy.
type Sync struct {
	nodeID   string
	mode     RemoteSetMode
	pins     Pins
	actuator *Actuator
	policy   *Policy
	log      *zap.Logger

	// A value set received during a pulse, applied once the pulse is over.
	pending bool
	target  bool
}

// NewSync creates a Sync for the node with the given ID. It takes over the
// actuator's idle hook.
func NewSync(nodeID string, mode RemoteSetMode, pins Pins, actuator *Actuator, policy *Policy, log *zap.Logger) *Sync {
	s := &Sync{
		nodeID:   nodeID,
		mode:     mode,
		pins:     pins,
		actuator: actuator,
		policy:   policy,
		log:      log,
	}
	actuator.OnIdle(s.applyPending)
	return s
}

// Handle dispatches a remote command event. Other events are ignored.
func (s *Sync) Handle(ev Event) {
	switch ev.Kind {
	case EventRemoteSet:
		s.OnRemoteSet(ev.NodeID, ev.State, ev.Value)
	case EventRemoteGet:
		s.OnRemoteGet(ev.NodeID, ev.State)
	}
}

// OnRemoteSet handles a set command. Only the relay state of this node is
// recognized.
func (s *Sync) OnRemoteSet(nodeID string, state StateID, value bool) {
	if !s.addressed(nodeID, state) {
		return
	}

	if s.mode == RemoteSetToggle {
		s.actuator.RequestToggle()
		return
	}

	// The sensed position is stale while a pulse is in flight; the last
	// requested value wins once it has finished.
	if s.actuator.Phase() != PulseIdle {
		s.pending, s.target = true, value
		s.log.Debug("set deferred until pulse ends", zap.Bool("value", value))
		return
	}
	s.driveTo(value)
}

// Pending reports a set that is waiting for the current pulse to finish.
func (s *Sync) Pending() (value, ok bool) {
	return s.target, s.pending
}

func (s *Sync) applyPending() {
	if !s.pending {
		return
	}
	s.pending = false
	s.driveTo(s.target)
}

func (s *Sync) driveTo(value bool) {
	closed, err := s.pins.Feedback()
	if err != nil {
		s.log.Warn("relay feedback read failed, set ignored", zap.Error(err))
		return
	}
	if closed == value {
		// Already there: answer with the current state.
		s.policy.PublishRelayState()
		return
	}
	s.actuator.RequestToggle()
}

// OnRemoteGet publishes the relay state immediately when asked for it.
func (s *Sync) OnRemoteGet(nodeID string, state StateID) {
	if !s.addressed(nodeID, state) {
		return
	}
	s.policy.PublishRelayState()
}

func (s *Sync) addressed(nodeID string, state StateID) bool {
	if nodeID != s.nodeID {
		s.log.Debug("command for another node ignored", zap.String("node", nodeID))
		return false
	}
	if state != StatePowerModuleRelay {
		s.log.Debug("unsupported state ignored", zap.Uint8("state", uint8(state)))
		return false
	}
	return true
}
