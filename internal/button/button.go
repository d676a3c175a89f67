// Package button watches the selection button and reports press and
// release transitions.
package button

import (
	"fmt"

	"github.com/sweeney/io-manager/internal/gpio"
	"github.com/sweeney/io-manager/internal/logic"
)

// The button pulls its line low while pressed.
const (
	LevelPressed  = gpio.Low
	LevelReleased = gpio.High
)

// EventCapacity bounds the transition channel.
const EventCapacity = 5

// Monitor polls one input line. Poll is called from the controller
// goroutine; Held may be called from any goroutine.
type Monitor struct {
	pin    gpio.Pin
	last   int
	events chan logic.Feedback
}

// NewMonitor creates a monitor that assumes the button starts released.
func NewMonitor(pin gpio.Pin) *Monitor {
	return &Monitor{
		pin:    pin,
		last:   LevelReleased,
		events: make(chan logic.Feedback, EventCapacity),
	}
}

// Init claims the line as an input.
func (m *Monitor) Init() error {
	if err := gpio.Setup(m.pin, gpio.In, 0); err != nil {
		return fmt.Errorf("button: %w", err)
	}
	return nil
}

// Events delivers ButtonPressed and ButtonReleased transitions.
func (m *Monitor) Events() <-chan logic.Feedback { return m.events }

// Poll reads the line once and emits a transition if the level changed.
// If the channel is full the level is not recorded, so the same
// transition is seen again on the next poll.
func (m *Monitor) Poll() error {
	v, err := m.pin.Read()
	if err != nil {
		return fmt.Errorf("button: %w", err)
	}
	if v == m.last {
		return nil
	}
	t := logic.FeedbackButtonReleased
	if v == LevelPressed {
		t = logic.FeedbackButtonPressed
	}
	select {
	case m.events <- logic.Feedback{Type: t}:
		m.last = v
	default:
	}
	return nil
}

// Held reads the line and reports whether the button is pressed. A read
// error counts as released.
func (m *Monitor) Held() bool {
	v, err := m.pin.Read()
	return err == nil && v == LevelPressed
}

// Close releases the line.
func (m *Monitor) Close() error {
	return m.pin.Close()
}
