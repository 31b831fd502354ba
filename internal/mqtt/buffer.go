package mqtt

import "log"

// outgoing is a serialized MQTT message waiting for a connection.
type outgoing struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages while the broker is unreachable. It is bounded:
// once full the oldest message is dropped. A retained message replaces any
// queued retained message on the same topic, since the broker would only
// keep the last one anyway.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []outgoing
	capacity int
	dropped  int
}

func newOutbox(capacity int) *outbox {
	return &outbox{capacity: capacity}
}

func (o *outbox) push(msg outgoing) {
	if msg.retained {
		for i := range o.msgs {
			if o.msgs[i].retained && o.msgs[i].topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}

	if len(o.msgs) == o.capacity {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.capacity)
		}
		o.dropped++
		o.msgs = o.msgs[1:]
	}
	o.msgs = append(o.msgs, msg)
}

// drain returns queued messages oldest first and empties the outbox.
func (o *outbox) drain() []outgoing {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	if o.dropped > 0 {
		log.Printf("mqtt: %d messages dropped while disconnected", o.dropped)
		o.dropped = 0
	}
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
