package mqtt

import "log/slog"

// pending is a publish held back while the broker is unreachable.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the newest publishes made while offline, up to a fixed
// capacity. When full the oldest entry is overwritten and counted as
// dropped. The caller synchronises access.
type outbox struct {
	slots   []pending
	next    int // slot the next push writes
	size    int
	dropped int
	warned  bool
	logger  *slog.Logger
}

func newOutbox(capacity int, logger *slog.Logger) *outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &outbox{slots: make([]pending, capacity), logger: logger}
}

func (o *outbox) push(p pending) {
	o.slots[o.next] = p
	o.next = (o.next + 1) % len(o.slots)
	if o.size < len(o.slots) {
		o.size++
		return
	}
	o.dropped++
	if !o.warned {
		o.logger.Warn("mqtt outbox full, dropping oldest publish", "capacity", len(o.slots))
		o.warned = true
	}
}

// drain returns the held publishes oldest first and empties the outbox.
func (o *outbox) drain() []pending {
	if o.size == 0 {
		return nil
	}
	out := make([]pending, 0, o.size)
	first := o.next - o.size
	if first < 0 {
		first += len(o.slots)
	}
	for i := 0; i < o.size; i++ {
		out = append(out, o.slots[(first+i)%len(o.slots)])
	}
	clear(o.slots)
	o.next, o.size, o.warned = 0, 0, false
	return out
}

func (o *outbox) len() int { return o.size }

// droppedTotal counts publishes lost to overflow since creation.
func (o *outbox) droppedTotal() int { return o.dropped }
