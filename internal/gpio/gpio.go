// Package gpio provides digital line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Direction is the configured direction of a line.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Line levels.
const (
	Low  = 0
	High = 1
)

// Error kinds for pin operations. Use errors.Is to match them.
var (
	ErrSelectPin    = errors.New("gpio: select pin failed")
	ErrSetDirection = errors.New("gpio: set direction failed")
	ErrSetValue     = errors.New("gpio: set value failed")
	ErrGetValue     = errors.New("gpio: get value failed")
)

// Pin is a single hardware line.
type Pin interface {
	// Export claims the line. It is safe to call more than once.
	Export() error
	// SetDirection configures the line as input or output.
	SetDirection(dir Direction) error
	// Read returns the current level (0 or 1).
	Read() (int, error)
	// Write drives the line to the given level (0 or 1).
	Write(value int) error
	// Close releases the line.
	Close() error
}

// Setup exports a pin and sets its direction. Output pins are then driven
// to initial.
func Setup(p Pin, dir Direction, initial int) error {
	if err := p.Export(); err != nil {
		return err
	}
	if err := p.SetDirection(dir); err != nil {
		return err
	}
	if dir == Out {
		return p.Write(initial)
	}
	return nil
}
