package mqtt

import (
	"sync"

	"github.com/sweeney/io-manager/internal/envelope"
)

// Publication is one recorded publish.
type Publication struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// FakeTransport records publishes and delivers scripted inbound messages.
// Safe for concurrent use.
type FakeTransport struct {
	mu           sync.Mutex
	publications []Publication
	messages     chan Inbound
	closed       bool

	// PublishError, if set, is returned by Publish and nothing is recorded.
	PublishError error
	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeTransport creates a connected FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		messages:  make(chan Inbound, InboundCapacity),
		Connected: true,
	}
}

// Publish records the message.
func (f *FakeTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrTransportClosed
	}
	if f.PublishError != nil {
		return f.PublishError
	}
	f.publications = append(f.publications, Publication{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

// Messages delivers what Deliver and DeliverError queue.
func (f *FakeTransport) Messages() <-chan Inbound { return f.messages }

// Deliver decodes payload as a broker message would be and queues it.
// It blocks while the channel is full. Self-echoes are dropped.
func (f *FakeTransport) Deliver(topic string, payload []byte) {
	if in, ok := decode(topic, payload); ok {
		f.messages <- in
	}
}

// DeliverEnvelope queues an already decoded envelope.
func (f *FakeTransport) DeliverEnvelope(topic string, env envelope.Envelope) {
	f.messages <- Inbound{Topic: topic, Envelope: env}
}

// DeliverError queues a receive failure.
func (f *FakeTransport) DeliverError(err error) {
	f.messages <- Inbound{Err: err}
}

// Publications returns a copy of everything published so far.
func (f *FakeTransport) Publications() []Publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Publication(nil), f.publications...)
}

// PublicationsTo returns the publishes sent to topic.
func (f *FakeTransport) PublicationsTo(topic string) []Publication {
	var out []Publication
	for _, p := range f.Publications() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Reset clears recorded publishes.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publications = nil
	f.PublishError = nil
}

// Close marks the transport closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// IsConnected reports the Connected field.
func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}
