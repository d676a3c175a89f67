package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout   = 10 * time.Second
	publishTimeout   = 5 * time.Second
	subscribeTimeout = 5 * time.Second
	disconnectQuiet  = 250 // ms
	defaultBuffer    = 64
)

// Options configures a Client.
type Options struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	KeepAlive time.Duration
	// BufferSize bounds publishes kept while disconnected.
	BufferSize int
	Logger     *slog.Logger
}

// Client is a Transport backed by a broker connection. It subscribes to
// TopicSubscribe on every (re)connect and replays publishes buffered
// while the connection was down.
type Client struct {
	client    paho.Client
	messages  chan Inbound
	done      chan struct{}
	closeOnce sync.Once
	connected atomic.Bool
	closed    atomic.Bool

	mu     sync.Mutex
	outbox *outbox

	logger *slog.Logger
}

// Connect dials the broker and subscribes to the command topics.
func Connect(o Options) (*Client, error) {
	c := newClient(o)

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(pc paho.Client) { c.handleConnect(pc) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.handleConnectionLost(err) })
	if o.KeepAlive > 0 {
		opts.SetKeepAlive(o.KeepAlive)
	}
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %w after %v", ErrConnectionFailed, ErrTimeout, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func newClient(o Options) *Client {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := o.BufferSize
	if size <= 0 {
		size = defaultBuffer
	}
	return &Client{
		messages: make(chan Inbound, InboundCapacity),
		done:     make(chan struct{}),
		outbox:   newOutbox(size, logger),
		logger:   logger,
	}
}

func (c *Client) handleConnect(pc paho.Client) {
	c.connected.Store(true)
	c.logger.Info("mqtt connected")

	token := pc.Subscribe(TopicSubscribe, 0, func(_ paho.Client, m paho.Message) {
		c.handleMessage(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		c.logger.Error("mqtt subscribe timed out", "topic", TopicSubscribe)
	} else if err := token.Error(); err != nil {
		c.logger.Error("mqtt subscribe failed", "topic", TopicSubscribe, "error", err)
	}

	c.mu.Lock()
	held := c.outbox.drain()
	dropped := c.outbox.droppedTotal()
	c.mu.Unlock()
	if len(held) > 0 {
		c.logger.Info("replaying buffered publishes", "count", len(held), "dropped_total", dropped)
	}
	for _, m := range held {
		if err := c.send(m); err != nil {
			c.logger.Warn("replay failed", "topic", m.topic, "error", err)
		}
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.connected.Store(false)
	c.deliver(Inbound{Err: fmt.Errorf("%w: %w", ErrConnectionLost, err)}, false)
}

// handleMessage runs on the paho router goroutine. It blocks while the
// channel is full, which holds back the broker.
func (c *Client) handleMessage(topic string, payload []byte) {
	in, ok := decode(topic, payload)
	if !ok {
		return
	}
	c.deliver(in, true)
}

func (c *Client) deliver(in Inbound, block bool) {
	if block {
		select {
		case c.messages <- in:
		case <-c.done:
		}
		return
	}
	select {
	case c.messages <- in:
	default:
		c.logger.Warn("inbound channel full, dropping", "error", in.Err)
	}
}

// Publish sends payload, or buffers it while disconnected.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if c.closed.Load() {
		return ErrTransportClosed
	}
	m := pending{topic: topic, payload: payload, qos: qos, retained: retained}
	if !c.connected.Load() {
		c.mu.Lock()
		c.outbox.push(m)
		c.mu.Unlock()
		c.logger.Debug("mqtt offline, buffered publish", "topic", topic)
		return nil
	}
	return c.send(m)
}

func (c *Client) send(m pending) error {
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %w: %s", ErrPublishFailed, ErrTimeout, m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, m.topic, err)
	}
	return nil
}

// Messages delivers decoded commands. After Close it yields one
// ErrTransportClosed if there is room.
func (c *Client) Messages() <-chan Inbound { return c.messages }

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Buffered returns the number of publishes waiting for a connection.
func (c *Client) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbox.len()
}

// Dropped returns the number of offline publishes lost to overflow.
func (c *Client) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbox.droppedTotal()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.client != nil {
			c.client.Disconnect(disconnectQuiet)
		}
		c.connected.Store(false)
		c.deliver(Inbound{Err: ErrTransportClosed}, false)
	})
	return nil
}
