package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Mode          string     `json:"mode"`
	Identity      string     `json:"identity"`
	Tick          uint64     `json:"tick"`
	LEDs          []string   `json:"leds"`
	Relays        []bool     `json:"relays"`
	Fan           FanJSON    `json:"fan"`
	Lock          string     `json:"lock"`
	Selection     string     `json:"selection,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"counts"`
	Config        ConfigJSON `json:"config"`
}

// FanJSON reports the fan controller.
type FanJSON struct {
	Level    string `json:"level"`
	CPUTempC int    `json:"cpu_temp_c"`
	Error    string `json:"error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
	Dropped   int    `json:"dropped"`
}

// CountsJSON is the JSON representation of the counters.
type CountsJSON struct {
	Commands        int `json:"commands"`
	Ignored         int `json:"ignored"`
	DecodeErrors    int `json:"decode_errors"`
	TransportErrors int `json:"transport_errors"`
	HardwareErrors  int `json:"hardware_errors"`
	Publishes       int `json:"publishes"`
	PublishErrors   int `json:"publish_errors"`
	Deferrals       int `json:"deferrals"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs         int64  `json:"tick_ms"`
	KeepAliveTicks int    `json:"keepalive_ticks"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	leds := snap.LEDs
	if leds == nil {
		leds = []string{}
	}
	relays := snap.Relays
	if relays == nil {
		relays = []bool{}
	}

	inner := StatusInner{
		Mode:          string(snap.Mode),
		Identity:      snap.Identity,
		Tick:          snap.Tick,
		LEDs:          leds,
		Relays:        relays,
		Fan:           FanJSON{Level: orUnknown(snap.FanLevel), CPUTempC: snap.CPUTempC, Error: snap.TempErr},
		Lock:          orUnknown(snap.Lock),
		Selection:     snap.Selection,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.Buffered,
			Dropped:   snap.Dropped,
		},
		Counts: CountsJSON{
			Commands:        snap.Counts.Commands,
			Ignored:         snap.Counts.Ignored,
			DecodeErrors:    snap.Counts.DecodeErrors,
			TransportErrors: snap.Counts.TransportErrors,
			HardwareErrors:  snap.Counts.HardwareErrors,
			Publishes:       snap.Publishes,
			PublishErrors:   snap.PublishErrors,
			Deferrals:       snap.Deferrals,
		},
		Config: ConfigJSON{
			TickMs:         snap.Config.TickMs,
			KeepAliveTicks: snap.Config.KeepAliveTicks,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
