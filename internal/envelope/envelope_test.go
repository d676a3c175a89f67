package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const relayCommand = `{
	"cmd": "set",
	"control_source": {"id": "u1", "previous_control_reqid": "", "type": "app"},
	"objects": [{
		"bridge_key": "io",
		"data": ["io-Mi8ea43769e4d6Qb-2"],
		"execution": {"command": "OnOff", "params": {"on": true}},
		"type": "devices"
	}],
	"reqid": "abc123",
	"source": "app"
}`

const ledCommand = `{
	"cmd": "set",
	"objects": [{"data": [{"event_code": "33"}], "type": "led"}],
	"reqid": "r1",
	"source": "cloud"
}`

func TestDecodeRelayCommand(t *testing.T) {
	env, err := Decode([]byte(relayCommand))
	require.NoError(t, err)

	assert.Equal(t, CmdSet, env.Cmd)
	assert.True(t, env.HasControlSource())
	assert.False(t, env.IsSelfEcho())

	device, index, on := env.RelayTarget()
	assert.Equal(t, "Mi8ea43769e4d6Qb", device)
	assert.Equal(t, 2, index)
	assert.True(t, on)
}

func TestDecodeLedCommand(t *testing.T) {
	env, err := Decode([]byte(ledCommand))
	require.NoError(t, err)
	assert.False(t, env.HasControlSource())

	code, ok, err := env.EventCode()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(33), code)
}

func TestDecodeInvalidPayload(t *testing.T) {
	_, err := Decode([]byte(`{"cmd": `))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Decode([]byte(`{"cmd": 5}`))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNullControlSourceCountsAsPresent(t *testing.T) {
	env, err := Decode([]byte(`{"cmd":"set","control_source":null,"objects":[]}`))
	require.NoError(t, err)
	assert.True(t, env.HasControlSource())
}

func TestEventCodeNumeric(t *testing.T) {
	env, err := Decode([]byte(`{"cmd":"set","objects":[{"data":[{"other":1},{"event_code":4401}]}]}`))
	require.NoError(t, err)

	code, ok, err := env.EventCode()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(4401), code)
}

func TestEventCodeMissing(t *testing.T) {
	env, err := Decode([]byte(`{"cmd":"set","objects":[{"data":["io-x-1"]}]}`))
	require.NoError(t, err)

	_, ok, err := env.EventCode()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventCodeUnparsable(t *testing.T) {
	env, err := Decode([]byte(`{"cmd":"set","objects":[{"data":[{"event_code":"abc"}]}]}`))
	require.NoError(t, err)

	_, ok, err := env.EventCode()
	assert.True(t, ok)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRelayTargetDefaults(t *testing.T) {
	env := Envelope{Cmd: CmdSet}
	device, index, on := env.RelayTarget()
	assert.Equal(t, "", device)
	assert.Equal(t, 0, index)
	assert.False(t, on)
}

func TestParseHash(t *testing.T) {
	tests := []struct {
		hash   string
		device string
		index  int
	}{
		{"io-mac-3", "mac", 3},
		{"io-mac", "mac", 0},
		{"io-mac-x", "mac", 0},
		{"io", "", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.hash, func(t *testing.T) {
			device, index := ParseHash(tt.hash)
			assert.Equal(t, tt.device, device)
			assert.Equal(t, tt.index, index)
		})
	}
}

func TestSelfEcho(t *testing.T) {
	assert.True(t, Envelope{Source: "io"}.IsSelfEcho())
	assert.False(t, Envelope{Source: "ai"}.IsSelfEcho())
}
