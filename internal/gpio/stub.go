//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Pin is not implemented on non-Linux platforms.
func (c *Chip) Pin(offset int) Pin {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
