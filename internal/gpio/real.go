//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "io-manager"

// Chip hands out lines from a Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named chip (e.g. "gpiochip0").
func OpenChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: c}, nil
}

// Pin returns the line at the given offset. The line is not requested
// until Export is called.
func (c *Chip) Pin(offset int) Pin {
	return &RealPin{chip: c.chip, offset: offset}
}

// Close releases the chip. Lines must be closed first.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealPin is a single line on a Chip.
type RealPin struct {
	mu     sync.Mutex
	chip   *gpiocdev.Chip
	offset int
	line   *gpiocdev.Line
}

// Export requests the line as an input.
func (p *RealPin) Export() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line != nil {
		return nil
	}
	line, err := p.chip.RequestLine(p.offset, gpiocdev.AsInput)
	if err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrSelectPin, p.offset, err)
	}
	p.line = line
	return nil
}

// SetDirection reconfigures the line. Switching to output keeps the
// current level so the line does not glitch.
func (p *RealPin) SetDirection(dir Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return fmt.Errorf("%w: line %d: not exported", ErrSetDirection, p.offset)
	}
	var err error
	if dir == Out {
		v, verr := p.line.Value()
		if verr != nil {
			v = High
		}
		err = p.line.Reconfigure(gpiocdev.AsOutput(v))
	} else {
		err = p.line.Reconfigure(gpiocdev.AsInput)
	}
	if err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrSetDirection, p.offset, err)
	}
	return nil
}

// Read returns the line level.
func (p *RealPin) Read() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return 0, fmt.Errorf("%w: line %d: not exported", ErrGetValue, p.offset)
	}
	v, err := p.line.Value()
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %w", ErrGetValue, p.offset, err)
	}
	return v, nil
}

// Write drives the line.
func (p *RealPin) Write(value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return fmt.Errorf("%w: line %d: not exported", ErrSetValue, p.offset)
	}
	if err := p.line.SetValue(value); err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrSetValue, p.offset, err)
	}
	return nil
}

// Close returns the line to an input before releasing it, matching the
// Pi boot default.
func (p *RealPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return nil
	}
	var errs []error
	if err := p.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line %d: %w", p.offset, err))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line %d: %w", p.offset, err))
	}
	p.line = nil
	return errors.Join(errs...)
}
