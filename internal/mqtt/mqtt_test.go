package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/io-manager/internal/envelope"
)

const ledCommand = `{"cmd":"set","objects":[{"data":[{"event_code":"33"}]}],"reqid":"r1","source":"cloud"}`

func TestTopics(t *testing.T) {
	assert.Equal(t, "component/io/status", TopicStatus)
	assert.Equal(t, "component/io/config", TopicConfig)
	assert.Equal(t, "component/keepalive/io-manager", TopicKeepAlive)
	assert.Equal(t, "component/io/+", TopicSubscribe)
}

func TestDecode(t *testing.T) {
	in, ok := decode("component/io/control", []byte(ledCommand))
	require.True(t, ok)
	require.NoError(t, in.Err)
	assert.Equal(t, envelope.CmdSet, in.Envelope.Cmd)
	assert.Equal(t, "component/io/control", in.Topic)
}

func TestDecodeDropsSelfEcho(t *testing.T) {
	_, ok := decode(TopicStatus, []byte(`{"cmd":"status","source":"io"}`))
	assert.False(t, ok)
}

func TestDecodeErrorFlowsAsInbound(t *testing.T) {
	in, ok := decode("component/io/control", []byte(`not json`))
	require.True(t, ok)
	assert.ErrorIs(t, in.Err, envelope.ErrDecode)
}

func TestClientHandleMessage(t *testing.T) {
	c := newClient(Options{})
	c.handleMessage("component/io/control", []byte(ledCommand))
	c.handleMessage(TopicStatus, []byte(`{"cmd":"status","source":"io"}`))

	require.Len(t, c.messages, 1)
	in := <-c.Messages()
	assert.Equal(t, "r1", in.Envelope.ReqID)
}

func TestClientBuffersWhileOffline(t *testing.T) {
	c := newClient(Options{BufferSize: 2})
	require.NoError(t, c.Publish(TopicStatus, []byte("a"), 0, false))
	require.NoError(t, c.Publish(TopicStatus, []byte("b"), 0, false))
	require.NoError(t, c.Publish(TopicStatus, []byte("c"), 0, false))

	assert.Equal(t, 2, c.Buffered())
	assert.Equal(t, 1, c.Dropped())
	assert.False(t, c.IsConnected())
}

func TestClientConnectionLostIsReported(t *testing.T) {
	c := newClient(Options{})
	c.connected.Store(true)
	c.handleConnectionLost(errors.New("eof"))

	assert.False(t, c.IsConnected())
	in := <-c.Messages()
	assert.ErrorIs(t, in.Err, ErrConnectionLost)
}

func TestClientClose(t *testing.T) {
	c := newClient(Options{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	in := <-c.Messages()
	assert.ErrorIs(t, in.Err, ErrTransportClosed)
	assert.ErrorIs(t, c.Publish(TopicStatus, []byte("x"), 0, false), ErrTransportClosed)

	// A handler blocked on a full channel is released by Close.
	for i := 0; i < InboundCapacity; i++ {
		c.messages <- Inbound{}
	}
	c.handleMessage("component/io/control", []byte(ledCommand))
}

func TestPublishEnvelope(t *testing.T) {
	f := NewFakeTransport()
	require.NoError(t, PublishEnvelope(f, TopicKeepAlive, envelope.KeepAlive()))

	pubs := f.PublicationsTo(TopicKeepAlive)
	require.Len(t, pubs, 1)
	assert.Equal(t, byte(0), pubs[0].QoS)
	assert.False(t, pubs[0].Retained)

	var got map[string]any
	require.NoError(t, json.Unmarshal(pubs[0].Payload, &got))
	assert.Equal(t, "status", got["cmd"])
	assert.Equal(t, "io", got["source"])
}

func TestFakeTransport(t *testing.T) {
	f := NewFakeTransport()
	assert.True(t, f.IsConnected())

	require.NoError(t, f.Publish(TopicStatus, []byte("1"), 0, false))
	require.NoError(t, f.Publish(TopicConfig, []byte("2"), 1, true))
	assert.Len(t, f.Publications(), 2)
	assert.Len(t, f.PublicationsTo(TopicConfig), 1)

	f.PublishError = ErrPublishFailed
	assert.ErrorIs(t, f.Publish(TopicStatus, nil, 0, false), ErrPublishFailed)
	assert.Len(t, f.Publications(), 2)

	f.Reset()
	assert.Empty(t, f.Publications())

	f.Deliver("component/io/control", []byte(ledCommand))
	f.Deliver(TopicStatus, []byte(`{"source":"io"}`))
	f.DeliverError(ErrConnectionLost)
	assert.Equal(t, "r1", (<-f.Messages()).Envelope.ReqID)
	assert.ErrorIs(t, (<-f.Messages()).Err, ErrConnectionLost)

	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
	assert.ErrorIs(t, f.Publish(TopicStatus, nil, 0, false), ErrTransportClosed)
}
