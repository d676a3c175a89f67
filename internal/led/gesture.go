package led

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/io-manager/internal/gpio"
	"github.com/sweeney/io-manager/internal/logic"
)

// selections maps an LED position to the signal emitted when the gesture
// is released there. The first LED is not selectable.
var selections = map[int]logic.FeedbackType{
	1: logic.FeedbackLedTwoReleased,
	2: logic.FeedbackLedThreeReleased,
	3: logic.FeedbackLedFourReleased,
	4: logic.FeedbackLedFiveReleased,
}

// Walk starts the selection gesture in its own goroutine. Every LED is
// blanked, then lit one per step while the button stays held. If the
// button is still held after the last LED the walk is undone in the same
// order and ButtonPressed is reported, which starts the next round.
// Releasing the button stops the walk where it is.
//
// Walk requires the gesture to hold the lock. A walk still running from
// an earlier press is superseded and writes nothing more.
func (b *Bank) Walk(ctx context.Context) error {
	if b.lock.Status() != LockButtonGesture {
		return ErrNotLocked
	}
	round := b.round.Add(1)
	pins := make([]gpio.Pin, len(b.entries))
	for i, e := range b.entries {
		pins[i] = e.pin
	}
	b.walkers.Add(1)
	go func() {
		looped, err := b.walk(ctx, round, pins)
		// Cleared before reporting so the next round's Walk is accepted.
		b.walkers.Add(-1)
		switch {
		case err != nil:
			b.send(ctx, logic.Feedback{Err: fmt.Errorf("gesture: %w", err)})
		case looped:
			b.send(ctx, logic.Feedback{Type: logic.FeedbackButtonPressed})
		}
	}()
	return nil
}

// walk reports whether it completed a full loop with the button held.
func (b *Bank) walk(ctx context.Context, round uint64, pins []gpio.Pin) (bool, error) {
	if len(pins) == 0 || !b.held() {
		return false, nil
	}
	for _, p := range pins {
		if ok, err := b.gestureWrite(round, p, LevelOff); !ok {
			return false, err
		}
	}
	for i, p := range pins {
		if !sleep(ctx, b.stepDelay) || !b.held() {
			return false, nil
		}
		if ok, err := b.gestureWrite(round, p, LevelOn); !ok {
			return false, err
		}
		if i == len(pins)-1 && !sleep(ctx, b.stepDelay) {
			return false, nil
		}
	}
	for _, p := range pins {
		if !b.held() {
			return false, nil
		}
		if ok, err := b.gestureWrite(round, p, LevelOff); !ok {
			return false, err
		}
	}
	return true, nil
}

// gestureWrite drives one LED for the walk of the given round. It writes
// nothing once the gesture has lost the lock or a newer round has started.
func (b *Bank) gestureWrite(round uint64, p gpio.Pin, level int) (bool, error) {
	b.walkMu.Lock()
	defer b.walkMu.Unlock()
	if b.round.Load() != round || b.lock.Status() != LockButtonGesture {
		return false, nil
	}
	if err := p.Write(level); err != nil {
		return false, err
	}
	return true, nil
}

// ResolveSelection is called once the gesture is released. The first LED
// whose line reads off (the first one the walk had not reached) gives the
// selection; positions without a signal, or no such LED, give Stop. Every
// LED not blinking is then restored to its logical state.
//
// Selection uses the live line levels while restoration uses the cached
// logical state, so an LED that changed under the gesture is resolved by
// what it showed, not by what it should show. The caller takes the lock
// away from the gesture first so no walk step lands after the restore.
func (b *Bank) ResolveSelection() (logic.Feedback, error) {
	b.walkMu.Lock()
	defer b.walkMu.Unlock()

	var errs []error
	sel := logic.Feedback{Type: logic.FeedbackStop}
	for i, e := range b.entries {
		v, err := e.pin.Read()
		if err != nil {
			errs = append(errs, fmt.Errorf("led %d: %w", i, err))
			break
		}
		if v == LevelOff {
			if t, ok := selections[i]; ok {
				sel.Type = t
			}
			break
		}
	}
	for i, e := range b.entries {
		if e.state == StateBlink {
			continue
		}
		if err := e.pin.Write(e.state.level()); err != nil {
			errs = append(errs, fmt.Errorf("led %d: %w", i, err))
		}
	}
	return sel, errors.Join(errs...)
}

// Walking reports whether a gesture goroutine is running.
func (b *Bank) Walking() bool {
	return b.walkers.Load() > 0
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
