// Package relay holds the on/off state of the relay outputs.
package relay

import (
	"errors"
	"fmt"

	"github.com/sweeney/io-manager/internal/gpio"
)

// Relays are wired active-low, like the LEDs.
const (
	LevelOn  = gpio.Low
	LevelOff = gpio.High
)

type entry struct {
	pin gpio.Pin
	on  bool
}

// Bank is the set of configured relays. Not safe for concurrent use.
type Bank struct {
	entries []entry
}

// NewBank creates a bank over pins. All relays start off.
func NewBank(pins []gpio.Pin) *Bank {
	entries := make([]entry, len(pins))
	for i, p := range pins {
		entries[i] = entry{pin: p}
	}
	return &Bank{entries: entries}
}

// Init claims every relay line as an output and switches it off.
func (b *Bank) Init() error {
	for i, e := range b.entries {
		if err := gpio.Setup(e.pin, gpio.Out, LevelOff); err != nil {
			return fmt.Errorf("relay %d: %w", i, err)
		}
	}
	return nil
}

// Len returns the number of relays.
func (b *Bank) Len() int { return len(b.entries) }

// SetOn switches a relay on. An out-of-range index is ignored.
func (b *Bank) SetOn(index int) error {
	return b.set(index, true)
}

// SetOff switches a relay off. An out-of-range index is ignored.
func (b *Bank) SetOff(index int) error {
	return b.set(index, false)
}

func (b *Bank) set(index int, on bool) error {
	if index < 0 || index >= len(b.entries) {
		return nil
	}
	e := &b.entries[index]
	level := LevelOff
	if on {
		level = LevelOn
	}
	if err := e.pin.Write(level); err != nil {
		return fmt.Errorf("relay %d: %w", index, err)
	}
	e.on = on
	return nil
}

// Snapshot returns every relay's state in index order.
func (b *Bank) Snapshot() []bool {
	out := make([]bool, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.on
	}
	return out
}

// Close switches every relay off and releases the lines.
func (b *Bank) Close() error {
	var errs []error
	for i, e := range b.entries {
		if err := e.pin.Write(LevelOff); err != nil {
			errs = append(errs, fmt.Errorf("relay %d: %w", i, err))
		}
		if err := e.pin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("relay %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
