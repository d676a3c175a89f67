// Package envelope defines the JSON message envelopes exchanged with the
// rest of the system. Inbound messages are decoded once into a typed
// Envelope; outbound messages are built from typed records.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Source is the tag this service puts on everything it publishes.
const Source = "io"

// Commands understood on inbound envelopes.
const (
	CmdSet    = "set"
	CmdGet    = "get"
	CmdStatus = "status"
	CmdSync   = "sync"
)

// ErrDecode is returned when a payload is not a valid envelope.
var ErrDecode = errors.New("envelope: decode failed")

// Envelope is an inbound command.
type Envelope struct {
	Cmd           string          `json:"cmd"`
	ControlSource json.RawMessage `json:"control_source,omitempty"`
	Objects       []Object        `json:"objects"`
	ReqID         string          `json:"reqid"`
	Source        string          `json:"source"`
}

// Object is one entry of an envelope's objects array. Data holds either
// hash strings (relay commands) or event objects (LED commands), so it is
// kept raw until the caller knows which.
type Object struct {
	BridgeKey string            `json:"bridge_key,omitempty"`
	Type      string            `json:"type,omitempty"`
	Data      []json.RawMessage `json:"data"`
	Execution *Execution        `json:"execution,omitempty"`
}

// Execution carries the requested trait values of a relay command.
type Execution struct {
	Params struct {
		On *bool `json:"on"`
	} `json:"params"`
}

// Decode parses a payload into an Envelope.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return env, nil
}

// HasControlSource reports whether the envelope names a control source.
// Relay commands carry one; LED commands do not.
func (e Envelope) HasControlSource() bool {
	return len(e.ControlSource) > 0
}

// IsSelfEcho reports whether the envelope was published by this service.
func (e Envelope) IsSelfEcho() bool {
	return e.Source == Source
}

// RelayTarget extracts the relay command: the device id and relay index
// from the first hash in objects[0].data ("io-<device>-<index>") and the
// requested state from objects[0].execution.params.on. Missing parts
// default to "", 0 and false.
func (e Envelope) RelayTarget() (device string, index int, on bool) {
	if len(e.Objects) == 0 {
		return "", 0, false
	}
	obj := e.Objects[0]
	if len(obj.Data) > 0 {
		var hash string
		if json.Unmarshal(obj.Data[0], &hash) == nil {
			device, index = ParseHash(hash)
		}
	}
	if obj.Execution != nil && obj.Execution.Params.On != nil {
		on = *obj.Execution.Params.On
	}
	return device, index, on
}

// ParseHash splits "prefix-device-index". An unparsable index is 0.
func ParseHash(hash string) (device string, index int) {
	parts := strings.Split(hash, "-")
	if len(parts) > 1 {
		device = parts[1]
	}
	if len(parts) > 2 {
		if n, err := strconv.Atoi(parts[2]); err == nil && n >= 0 {
			index = n
		}
	}
	return device, index
}

type eventData struct {
	EventCode json.RawMessage `json:"event_code"`
}

// EventCode returns the first event_code found in the envelope's data
// objects. The code may be encoded as a string or a number. ok is false
// when no data object carries one.
func (e Envelope) EventCode() (code uint32, ok bool, err error) {
	for _, obj := range e.Objects {
		for _, raw := range obj.Data {
			var d eventData
			if json.Unmarshal(raw, &d) != nil || len(d.EventCode) == 0 {
				continue
			}
			code, err = parseEventCode(d.EventCode)
			return code, true, err
		}
	}
	return 0, false, nil
}

func parseEventCode(raw json.RawMessage) (uint32, error) {
	s := string(bytes.TrimSpace(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: event_code %s: %w", ErrDecode, raw, err)
	}
	return uint32(n), nil
}

// NewRequestID returns a fresh random request identifier.
var NewRequestID = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Hash returns the object hash of relay index on device.
func Hash(device string, index int) string {
	return fmt.Sprintf("io-%s-%d", device, index)
}
