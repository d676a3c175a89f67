// Package led drives the indicator LEDs: steady on/off, self-rescheduling
// blink sessions, and the button "walking" gesture used to pick an LED.
//
// The bank is owned by the controller goroutine. Blink continuations and
// the gesture run as separate goroutines that only touch pin handles and
// report back through the feedback channel.
package led

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/io-manager/internal/gpio"
	"github.com/sweeney/io-manager/internal/logic"
)

// LEDs are wired active-low.
const (
	LevelOn  = gpio.Low
	LevelOff = gpio.High
)

// FeedbackCapacity bounds the feedback channel. A full channel blocks the
// producing task until the controller catches up.
const FeedbackCapacity = 5

var (
	// ErrDuplicateSession rejects a blink start whose token matches the
	// running session. It is flow control, not a fault.
	ErrDuplicateSession = errors.New("led: duplicate blink session")
	// ErrNotLocked is returned by Walk when the gesture does not own the LEDs.
	ErrNotLocked = errors.New("led: gesture does not hold the led lock")
)

// State is the logical state of one LED.
type State string

const (
	StateOff   State = "OFF"
	StateOn    State = "ON"
	StateBlink State = "BLINK"
)

func (s State) level() int {
	if s == StateOn {
		return LevelOn
	}
	return LevelOff
}

type entry struct {
	pin        gpio.Pin
	state      State
	lastToggle uint64
	toggles    uint8
	token      uint16
	gen        uint32
}

// Config holds bank timing.
type Config struct {
	// TickMs is the controller tick resolution in milliseconds.
	TickMs uint64
	// StepDelay separates the steps of the walking gesture.
	StepDelay time.Duration
}

// Bank is the set of configured LEDs.
type Bank struct {
	entries   []entry
	held      func() bool
	lock      LockReader
	feedback  chan logic.Feedback
	tickMs    uint64
	stepDelay time.Duration
	logger    *slog.Logger

	// walkMu orders walk writes against ResolveSelection. round
	// identifies the current walk; older walks stop writing.
	walkMu  sync.Mutex
	round   atomic.Uint64
	walkers atomic.Int32
}

// NewBank creates a bank over pins. held reports whether the button is
// still pressed; lock is read to confirm gesture ownership.
func NewBank(pins []gpio.Pin, held func() bool, lock LockReader, cfg Config, logger *slog.Logger) *Bank {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickMs == 0 {
		cfg.TickMs = 100
	}
	entries := make([]entry, len(pins))
	for i, p := range pins {
		entries[i] = entry{pin: p, state: StateOff}
	}
	return &Bank{
		entries:   entries,
		held:      held,
		lock:      lock,
		feedback:  make(chan logic.Feedback, FeedbackCapacity),
		tickMs:    cfg.TickMs,
		stepDelay: cfg.StepDelay,
		logger:    logger,
	}
}

// Init claims every LED line as an output and turns it off.
func (b *Bank) Init() error {
	for i, e := range b.entries {
		if err := gpio.Setup(e.pin, gpio.Out, LevelOff); err != nil {
			return fmt.Errorf("led %d: %w", i, err)
		}
	}
	return nil
}

// Len returns the number of LEDs.
func (b *Bank) Len() int { return len(b.entries) }

// Feedback delivers blink continuations and gesture results.
func (b *Bank) Feedback() <-chan logic.Feedback { return b.feedback }

// SetOn turns an LED on. An out-of-range index is ignored.
func (b *Bank) SetOn(index int) error {
	return b.set(index, StateOn)
}

// SetOff turns an LED off. An out-of-range index is ignored.
func (b *Bank) SetOff(index int) error {
	return b.set(index, StateOff)
}

// set ends any blink session on the LED: the token is cleared so the same
// blink may be started again, and the generation moves on so pending
// continuations of the old session are dropped.
func (b *Bank) set(index int, s State) error {
	e := b.at(index)
	if e == nil {
		return nil
	}
	e.state = s
	e.toggles = 0
	e.token = 0
	e.gen++
	return e.pin.Write(s.level())
}

// Admit starts a blink session unless one with the same token (period) is
// already running. It returns the session generation to pass to Step.
func (b *Bank) Admit(index int, periodMs uint16) (uint32, error) {
	e := b.at(index)
	if e == nil || e.token == periodMs {
		return 0, ErrDuplicateSession
	}
	e.token = periodMs
	e.gen++
	return e.gen, nil
}

// Step advances a blink session by one step: toggle the LED if a full
// period has elapsed, stop if a finite session is complete, otherwise
// schedule the continuation. A continuation that belongs to a superseded
// session is dropped.
func (b *Bank) Step(ctx context.Context, index int, p logic.BlinkParams, gen uint32, tick uint64) error {
	e := b.at(index)
	if e == nil || e.gen != gen || e.token != p.PeriodMs {
		return nil
	}
	if e.toggles == 0 {
		e.state = StateBlink
	}
	if e.state != StateBlink {
		e.toggles = 0
		return nil
	}

	var err error
	if tick-e.lastToggle >= uint64(p.PeriodMs)/b.tickMs {
		e.lastToggle = tick
		e.toggles++
		err = toggle(e.pin)
		if !p.Infinite && e.toggles >= p.Toggles {
			e.toggles = 0
			return err
		}
	}
	b.schedule(ctx, index, p, gen)
	return err
}

func (b *Bank) schedule(ctx context.Context, index int, p logic.BlinkParams, gen uint32) {
	fb := logic.Feedback{Type: logic.FeedbackBlinkContinue, Led: index, Blink: p, Generation: gen}
	time.AfterFunc(time.Duration(p.PeriodMs)*time.Millisecond, func() {
		select {
		case b.feedback <- fb:
		case <-ctx.Done():
		}
	})
}

func toggle(p gpio.Pin) error {
	v, err := p.Read()
	if err != nil {
		return err
	}
	if v == gpio.Low {
		return p.Write(gpio.High)
	}
	return p.Write(gpio.Low)
}

// Snapshot returns the logical state of every LED.
func (b *Bank) Snapshot() []State {
	out := make([]State, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.state
	}
	return out
}

// Close turns every LED off and releases the lines.
func (b *Bank) Close() error {
	var errs []error
	for i, e := range b.entries {
		if err := e.pin.Write(LevelOff); err != nil {
			errs = append(errs, fmt.Errorf("led %d: %w", i, err))
		}
		if err := e.pin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("led %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bank) at(index int) *entry {
	if index < 0 || index >= len(b.entries) {
		return nil
	}
	return &b.entries[index]
}

func (b *Bank) send(ctx context.Context, fb logic.Feedback) {
	select {
	case b.feedback <- fb:
	case <-ctx.Done():
	}
}
