// Package status provides a thread-safe snapshot of io-manager state for
// the HTTP status page.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/io-manager/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs         int64
	KeepAliveTicks int
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the lock is released.
type Snapshot struct {
	Mode          logic.Mode
	Identity      string
	Tick          uint64
	LEDs          []string
	Relays        []bool
	FanLevel      string
	CPUTempC      int
	TempErr       string
	Lock          string
	Selection     string
	Counts        logic.Counts
	Publishes     int
	PublishErrors int
	Deferrals     int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	// Buffered and Dropped describe the offline publish outbox.
	Buffered int
	Dropped  int
	Config   Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker for a device.
func NewTracker(startTime time.Time, mode logic.Mode, identity string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      mode,
			Identity:  identity,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateEngine records the engine tick, counters and last selection.
func (t *Tracker) UpdateEngine(tick uint64, counts logic.Counts, selection logic.FeedbackType) {
	t.mu.Lock()
	t.snap.Tick = tick
	t.snap.Counts = counts
	t.snap.Selection = string(selection)
	t.mu.Unlock()
}

// UpdateOutputs records LED and relay states. The slices are copied.
func (t *Tracker) UpdateOutputs(leds []string, relays []bool) {
	t.mu.Lock()
	t.snap.LEDs = append(t.snap.LEDs[:0:0], leds...)
	t.snap.Relays = append(t.snap.Relays[:0:0], relays...)
	t.mu.Unlock()
}

// SetLock records the LED lock owner.
func (t *Tracker) SetLock(lock string) {
	t.mu.Lock()
	t.snap.Lock = lock
	t.mu.Unlock()
}

// SetFan records the fan level and the reading that produced it.
func (t *Tracker) SetFan(level string, tempC int) {
	t.mu.Lock()
	t.snap.FanLevel = level
	t.snap.CPUTempC = tempC
	t.snap.TempErr = ""
	t.mu.Unlock()
}

// SetTempError records a failed temperature read.
func (t *Tracker) SetTempError(err error) {
	t.mu.Lock()
	t.snap.TempErr = err.Error()
	t.mu.Unlock()
}

// RecordPublish counts a publish attempt.
func (t *Tracker) RecordPublish(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.PublishErrors++
	} else {
		t.snap.Publishes++
	}
	t.mu.Unlock()
}

// RecordDeferral counts an LED action held back by the gesture.
func (t *Tracker) RecordDeferral() {
	t.mu.Lock()
	t.snap.Deferrals++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetOutbox records the offline publish backlog.
func (t *Tracker) SetOutbox(buffered, dropped int) {
	t.mu.Lock()
	t.snap.Buffered = buffered
	t.snap.Dropped = dropped
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.LEDs = append([]string(nil), t.snap.LEDs...)
	s.Relays = append([]bool(nil), t.snap.Relays...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
