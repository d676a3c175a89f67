package led

import "sync/atomic"

// LockStatus says who currently owns the LED hardware.
type LockStatus int32

const (
	// LockLedCtrl: commands drive the LEDs.
	LockLedCtrl LockStatus = iota
	// LockBlink: a blink session was started; commands still drive the LEDs.
	LockBlink
	// LockButtonGesture: the button gesture owns every LED and LED commands
	// must wait.
	LockButtonGesture
)

func (s LockStatus) String() string {
	switch s {
	case LockBlink:
		return "BLINK"
	case LockButtonGesture:
		return "BUTTON_GESTURE"
	default:
		return "LED_CTRL"
	}
}

// LockReader is the read side of a Lock.
type LockReader interface {
	Status() LockStatus
}

// Lock holds the LED ownership status. The controller is its only writer;
// the bank only reads it.
type Lock struct {
	v atomic.Int32
}

// Set changes the status.
func (l *Lock) Set(s LockStatus) {
	l.v.Store(int32(s))
}

// Status returns the current status.
func (l *Lock) Status() LockStatus {
	return LockStatus(l.v.Load())
}

// Gesture reports whether the button gesture holds the LEDs.
func (l *Lock) Gesture() bool {
	return l.Status() == LockButtonGesture
}
