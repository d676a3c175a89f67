// Package mqtt carries command envelopes between the broker and the
// controller, with an abstraction for testing.
package mqtt

import (
	"errors"
	"fmt"

	"github.com/sweeney/io-manager/internal/envelope"
)

// Fixed topics.
const (
	TopicStatus    = "component/io/status"
	TopicConfig    = "component/io/config"
	TopicKeepAlive = "component/keepalive/io-manager"
	TopicSubscribe = "component/io/+"
)

// InboundCapacity bounds the inbound message channel.
const InboundCapacity = 5

// Use errors.Is to match these.
var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrTimeout          = errors.New("mqtt: operation timed out")
	ErrConnectionLost   = errors.New("mqtt: connection lost")
	// ErrTransportClosed means no further messages will arrive.
	ErrTransportClosed = errors.New("mqtt: transport closed")
)

// Inbound is one receive result: a decoded envelope or the error that
// took its place.
type Inbound struct {
	Topic    string
	Envelope envelope.Envelope
	Err      error
}

// Transport publishes payloads and delivers inbound commands.
type Transport interface {
	// Publish sends payload to topic. Failures are returned, never fatal.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Messages delivers decoded commands and receive errors in arrival order.
	Messages() <-chan Inbound

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// decode turns a raw message into an Inbound. Messages this service sent
// itself are dropped (ok is false).
func decode(topic string, payload []byte) (in Inbound, ok bool) {
	env, err := envelope.Decode(payload)
	if err != nil {
		return Inbound{Topic: topic, Err: fmt.Errorf("%s: %w", topic, err)}, true
	}
	if env.IsSelfEcho() {
		return Inbound{}, false
	}
	return Inbound{Topic: topic, Envelope: env}, true
}

// PublishEnvelope marshals out and publishes it at QoS 0, not retained.
func PublishEnvelope(t Transport, topic string, out envelope.Outbound) error {
	payload, err := out.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return t.Publish(topic, payload, 0, false)
}
