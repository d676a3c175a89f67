package envelope

import "encoding/json"

// Object types used on outbound envelopes.
const (
	TypeDevices      = "devices"
	TypeDevicesLocal = "devices_local"
	TypeKeepAlive    = "keepalive"
)

const bridgeKey = "io"

// Outbound is an envelope published by this service.
type Outbound struct {
	Cmd           string          `json:"cmd"`
	ControlSource json.RawMessage `json:"control_source,omitempty"`
	Objects       []OutObject     `json:"objects"`
	ReqID         string          `json:"reqid"`
	Source        string          `json:"source"`
}

// OutObject is one entry of an outbound objects array.
type OutObject struct {
	BridgeKey string `json:"bridge_key"`
	Data      any    `json:"data"`
	Type      string `json:"type"`
}

// StateRecord reports the on/off state of one object.
type StateRecord struct {
	Hash   string `json:"hash"`
	States States `json:"states"`
}

// States holds the trait states of an object.
type States struct {
	OnOff OnOff `json:"OnOff"`
}

// OnOff is the on/off trait.
type OnOff struct {
	On bool `json:"on"`
}

// SwitchConfig describes one relay as a switch in a sync envelope.
type SwitchConfig struct {
	BridgeKey string  `json:"bridge_key"`
	Hash      string  `json:"hash"`
	IsDefault bool    `json:"isDefault"`
	Mac       string  `json:"mac"`
	MacDev    string  `json:"macdev"`
	Traits    []Trait `json:"traits"`
	Type      string  `json:"type"`
}

// Trait is a switch capability.
type Trait struct {
	IsMain bool   `json:"is_main"`
	Name   string `json:"name"`
}

// RelayState is the state of one relay to be reported.
type RelayState struct {
	Index int
	On    bool
}

var defaultControlSource = json.RawMessage(`{"id":"","previous_control_reqid":"","type":"app"}`)

// Status builds the status envelope answering a relay command. The
// request's control_source and reqid are echoed back; a request without a
// reqid gets a fresh one.
func Status(req Envelope, device string, relays []RelayState) Outbound {
	cs := req.ControlSource
	if len(cs) == 0 {
		cs = defaultControlSource
	}
	reqID := req.ReqID
	if reqID == "" {
		reqID = NewRequestID()
	}
	return Outbound{
		Cmd:           CmdStatus,
		ControlSource: cs,
		Objects: []OutObject{{
			BridgeKey: bridgeKey,
			Data:      stateRecords(device, relays),
			Type:      TypeDevices,
		}},
		ReqID:  reqID,
		Source: Source,
	}
}

// Sync builds the resync pair: a config envelope enumerating every relay
// as a switch, and a status envelope with every relay's state.
func Sync(device string, states []bool) (config, status Outbound) {
	switches := make([]SwitchConfig, 0, len(states))
	relays := make([]RelayState, 0, len(states))
	for i, on := range states {
		switches = append(switches, SwitchConfig{
			BridgeKey: bridgeKey,
			Hash:      Hash(device, i),
			IsDefault: true,
			Mac:       device,
			MacDev:    device,
			Traits:    []Trait{{IsMain: on, Name: "OnOff"}},
			Type:      "SWITCH",
		})
		relays = append(relays, RelayState{Index: i, On: on})
	}
	config = Outbound{
		Cmd: CmdSync,
		Objects: []OutObject{{
			BridgeKey: bridgeKey,
			Data:      switches,
			Type:      TypeDevicesLocal,
		}},
		ReqID:  NewRequestID(),
		Source: Source,
	}
	status = Outbound{
		Cmd: CmdStatus,
		Objects: []OutObject{{
			BridgeKey: bridgeKey,
			Data:      stateRecords(device, relays),
			Type:      TypeDevices,
		}},
		ReqID:  NewRequestID(),
		Source: Source,
	}
	return config, status
}

// KeepAlive builds the periodic liveness envelope.
func KeepAlive() Outbound {
	return Outbound{
		Cmd: CmdStatus,
		Objects: []OutObject{{
			BridgeKey: bridgeKey,
			Data:      []any{},
			Type:      TypeKeepAlive,
		}},
		ReqID:  NewRequestID(),
		Source: Source,
	}
}

// Marshal encodes an outbound envelope.
func (o Outbound) Marshal() ([]byte, error) {
	return json.Marshal(o)
}

func stateRecords(device string, relays []RelayState) []StateRecord {
	recs := make([]StateRecord, 0, len(relays))
	for _, r := range relays {
		recs = append(recs, StateRecord{
			Hash:   Hash(device, r.Index),
			States: States{OnOff: OnOff{On: r.On}},
		})
	}
	return recs
}
