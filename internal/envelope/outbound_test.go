package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRequestIDs(t *testing.T, ids ...string) {
	t.Helper()
	orig := NewRequestID
	n := 0
	NewRequestID = func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}
	t.Cleanup(func() { NewRequestID = orig })
}

func decodeMap(t *testing.T, o Outbound) map[string]any {
	t.Helper()
	b, err := o.Marshal()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestStatusEchoesRequest(t *testing.T) {
	req, err := Decode([]byte(relayCommand))
	require.NoError(t, err)

	m := decodeMap(t, Status(req, "mac", []RelayState{{Index: 2, On: true}}))

	assert.Equal(t, "status", m["cmd"])
	assert.Equal(t, "abc123", m["reqid"])
	assert.Equal(t, "io", m["source"])
	cs := m["control_source"].(map[string]any)
	assert.Equal(t, "u1", cs["id"])

	obj := m["objects"].([]any)[0].(map[string]any)
	assert.Equal(t, "io", obj["bridge_key"])
	assert.Equal(t, "devices", obj["type"])
	rec := obj["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "io-mac-2", rec["hash"])
	on := rec["states"].(map[string]any)["OnOff"].(map[string]any)["on"]
	assert.Equal(t, true, on)
}

func TestStatusWithoutRequestFields(t *testing.T) {
	fixedRequestIDs(t, "fresh")

	m := decodeMap(t, Status(Envelope{}, "mac", []RelayState{{Index: 0, On: false}}))

	assert.Equal(t, "fresh", m["reqid"])
	cs := m["control_source"].(map[string]any)
	assert.Equal(t, "app", cs["type"])
}

func TestSyncEnumeratesRelays(t *testing.T) {
	fixedRequestIDs(t, "r1", "r2")

	config, status := Sync("mac", []bool{true, false, true})

	cm := decodeMap(t, config)
	assert.Equal(t, "sync", cm["cmd"])
	assert.Equal(t, "r1", cm["reqid"])
	obj := cm["objects"].([]any)[0].(map[string]any)
	assert.Equal(t, "devices_local", obj["type"])
	switches := obj["data"].([]any)
	require.Len(t, switches, 3)
	sw := switches[1].(map[string]any)
	assert.Equal(t, "io-mac-1", sw["hash"])
	assert.Equal(t, "SWITCH", sw["type"])
	assert.Equal(t, true, sw["isDefault"])
	assert.Equal(t, "mac", sw["macdev"])
	trait := sw["traits"].([]any)[0].(map[string]any)
	assert.Equal(t, false, trait["is_main"])
	assert.Equal(t, "OnOff", trait["name"])

	sm := decodeMap(t, status)
	assert.Equal(t, "status", sm["cmd"])
	assert.Equal(t, "r2", sm["reqid"])
	assert.NotContains(t, sm, "control_source")
	recs := sm["objects"].([]any)[0].(map[string]any)["data"].([]any)
	require.Len(t, recs, 3)
	assert.Equal(t, "io-mac-2", recs[2].(map[string]any)["hash"])
}

func TestKeepAliveHasEmptyDeviceList(t *testing.T) {
	m := decodeMap(t, KeepAlive())

	assert.Equal(t, "status", m["cmd"])
	assert.NotEmpty(t, m["reqid"])
	obj := m["objects"].([]any)[0].(map[string]any)
	assert.Equal(t, "keepalive", obj["type"])
	assert.Empty(t, obj["data"])
}

func TestRequestIDsAreFresh(t *testing.T) {
	a := KeepAlive().ReqID
	b := KeepAlive().ReqID
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
