package mqtt

// pending is a publication waiting for the broker connection.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	// latest marks a state value: only the newest one per topic is worth
	// replaying. Counters and lifecycle events are all kept.
	latest bool
}

// outbox holds publications while the broker is unreachable, bounded to
// limit entries with the oldest dropped first. Guarded by RealPublisher.mu.
type outbox struct {
	msgs    []pending
	limit   int
	dropped bool
}

func newOutbox(limit int) *outbox {
	return &outbox{msgs: make([]pending, 0, limit), limit: limit}
}

// add queues m. A state value replaces the queued value of the same topic.
// add reports true for the first drop since the last flush.
func (o *outbox) add(m pending) bool {
	if m.latest {
		for i := range o.msgs {
			if o.msgs[i].latest && o.msgs[i].topic == m.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}

	first := false
	if len(o.msgs) == o.limit {
		o.msgs = append(o.msgs[:0], o.msgs[1:]...)
		first = !o.dropped
		o.dropped = true
	}
	o.msgs = append(o.msgs, m)
	return first
}

// flush returns the queued publications oldest first and empties the outbox.
func (o *outbox) flush() []pending {
	if len(o.msgs) == 0 {
		return nil
	}
	out := make([]pending, len(o.msgs))
	copy(out, o.msgs)
	o.msgs = o.msgs[:0]
	o.dropped = false
	return out
}

func (o *outbox) len() int { return len(o.msgs) }
