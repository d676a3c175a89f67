package gpio

import (
	"fmt"
	"sync"
)

// FakePin is a test double with scripted reads and recorded writes.
// It is safe for concurrent use.
type FakePin struct {
	mu sync.Mutex

	// Offset identifies the pin in error messages.
	Offset int

	exported  bool
	direction Direction
	value     int
	reads     []int
	writes    []int

	// ExportError, DirectionError, ReadError and WriteError, if set, are
	// returned by the matching operation.
	ExportError    error
	DirectionError error
	ReadError      error
	WriteError     error

	closed bool
}

// NewFakePin creates a FakePin whose level starts at initial.
func NewFakePin(offset, initial int) *FakePin {
	return &FakePin{Offset: offset, value: initial}
}

// Export marks the pin exported.
func (f *FakePin) Export() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExportError != nil {
		return fmt.Errorf("%w: line %d: %w", ErrSelectPin, f.Offset, f.ExportError)
	}
	f.exported = true
	return nil
}

// SetDirection records the direction.
func (f *FakePin) SetDirection(dir Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DirectionError != nil {
		return fmt.Errorf("%w: line %d: %w", ErrSetDirection, f.Offset, f.DirectionError)
	}
	f.direction = dir
	return nil
}

// Read returns the next scripted level, or the current level once the
// script is exhausted.
func (f *FakePin) Read() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, fmt.Errorf("%w: line %d: %w", ErrGetValue, f.Offset, f.ReadError)
	}
	if len(f.reads) > 0 {
		f.value = f.reads[0]
		f.reads = f.reads[1:]
	}
	return f.value, nil
}

// Write records the level and makes it the current value.
func (f *FakePin) Write(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return fmt.Errorf("%w: line %d: %w", ErrSetValue, f.Offset, f.WriteError)
	}
	f.value = value
	f.writes = append(f.writes, value)
	return nil
}

// Close marks the pin closed.
func (f *FakePin) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Script queues levels to be returned by successive reads.
func (f *FakePin) Script(levels ...int) {
	f.mu.Lock()
	f.reads = append(f.reads, levels...)
	f.mu.Unlock()
}

// Set changes the current level without recording a write, as if driven
// externally (a button being pressed).
func (f *FakePin) Set(value int) {
	f.mu.Lock()
	f.value = value
	f.reads = nil
	f.mu.Unlock()
}

// Value returns the current level.
func (f *FakePin) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Writes returns a copy of every level written so far.
func (f *FakePin) Writes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.writes...)
}

// Exported reports whether Export succeeded.
func (f *FakePin) Exported() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exported
}

// Direction returns the last direction set.
func (f *FakePin) Direction() Direction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direction
}

// Closed reports whether Close was called.
func (f *FakePin) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakePins creates one FakePin per offset, all starting at initial.
func FakePins(initial int, offsets ...int) []*FakePin {
	pins := make([]*FakePin, len(offsets))
	for i, o := range offsets {
		pins[i] = NewFakePin(o, initial)
	}
	return pins
}

// AsPins converts fakes to the Pin interface.
func AsPins(fakes []*FakePin) []Pin {
	pins := make([]Pin, len(fakes))
	for i, f := range fakes {
		pins[i] = f
	}
	return pins
}
