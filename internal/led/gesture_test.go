package led

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/io-manager/internal/gpio"
	"github.com/sweeney/io-manager/internal/logic"
)

func gestureLock() *Lock {
	l := &Lock{}
	l.Set(LockButtonGesture)
	return l
}

// heldFor returns a predicate that reports held for the first n calls.
func heldFor(n int32) func() bool {
	var calls atomic.Int32
	return func() bool {
		return calls.Add(1) <= n
	}
}

func waitWalkDone(t *testing.T, b *Bank) {
	t.Helper()
	require.Eventually(t, func() bool { return !b.Walking() }, time.Second, time.Millisecond)
}

func TestWalkRequiresGestureLock(t *testing.T) {
	b, _ := newTestBank(t, 3, func() bool { return true }, &Lock{})
	assert.ErrorIs(t, b.Walk(context.Background()), ErrNotLocked)
}

func TestWalkFullLoopReportsButtonPressed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, pins := newTestBank(t, 3, func() bool { return true }, gestureLock())

	require.NoError(t, b.Walk(ctx))

	select {
	case fb := <-b.Feedback():
		assert.Equal(t, logic.FeedbackButtonPressed, fb.Type)
	case <-time.After(time.Second):
		t.Fatal("gesture did not complete a loop")
	}
	waitWalkDone(t, b)

	for _, p := range pins {
		// Init, blank, light, blank
		assert.Equal(t, []int{LevelOff, LevelOff, LevelOn, LevelOff}, p.Writes())
	}
}

func TestWalkStopsOnRelease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// held at the start and for the first two steps only
	b, pins := newTestBank(t, 4, heldFor(3), gestureLock())

	require.NoError(t, b.Walk(ctx))
	waitWalkDone(t, b)

	assert.Equal(t, LevelOn, pins[0].Value())
	assert.Equal(t, LevelOn, pins[1].Value())
	assert.Equal(t, LevelOff, pins[2].Value())
	assert.Equal(t, LevelOff, pins[3].Value())

	select {
	case fb := <-b.Feedback():
		t.Fatalf("unexpected feedback %+v", fb)
	default:
	}
}

func TestWalkNotHeldLeavesLedsAlone(t *testing.T) {
	b, pins := newTestBank(t, 3, func() bool { return false }, gestureLock())

	require.NoError(t, b.Walk(context.Background()))
	waitWalkDone(t, b)

	for _, p := range pins {
		assert.Equal(t, []int{LevelOff}, p.Writes())
	}
	assert.Empty(t, b.Feedback())
}

func TestWalkWithoutLedsDoesNotLoop(t *testing.T) {
	b, _ := newTestBank(t, 0, func() bool { return true }, gestureLock())

	require.NoError(t, b.Walk(context.Background()))
	waitWalkDone(t, b)
	assert.Empty(t, b.Feedback())
}

func TestWalkWriteErrorIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, pins := newTestBank(t, 2, func() bool { return true }, gestureLock())
	pins[1].WriteError = assert.AnError

	require.NoError(t, b.Walk(ctx))
	select {
	case fb := <-b.Feedback():
		assert.ErrorIs(t, fb.Err, gpio.ErrSetValue)
	case <-time.After(time.Second):
		t.Fatal("expected error feedback")
	}
}

func TestResolveSelection(t *testing.T) {
	tests := []struct {
		name   string
		levels []int
		want   logic.FeedbackType
	}{
		{"second", []int{LevelOn, LevelOff, LevelOff, LevelOff, LevelOff}, logic.FeedbackLedTwoReleased},
		{"third", []int{LevelOn, LevelOn, LevelOff, LevelOff, LevelOff}, logic.FeedbackLedThreeReleased},
		{"fourth", []int{LevelOn, LevelOn, LevelOn, LevelOff, LevelOff}, logic.FeedbackLedFourReleased},
		{"fifth", []int{LevelOn, LevelOn, LevelOn, LevelOn, LevelOff}, logic.FeedbackLedFiveReleased},
		{"first is not selectable", []int{LevelOff, LevelOff, LevelOff, LevelOff, LevelOff}, logic.FeedbackStop},
		{"none off", []int{LevelOn, LevelOn, LevelOn, LevelOn, LevelOn}, logic.FeedbackStop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, pins := newTestBank(t, 5, nil, nil)
			for i, v := range tt.levels {
				pins[i].Set(v)
			}
			sel, err := b.ResolveSelection()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Type)
		})
	}
}

func TestResolveSelectionPastFifthIsStop(t *testing.T) {
	b, pins := newTestBank(t, 7, nil, nil)
	for i := 0; i < 5; i++ {
		pins[i].Set(LevelOn)
	}
	sel, err := b.ResolveSelection()
	require.NoError(t, err)
	assert.Equal(t, logic.FeedbackStop, sel.Type)
}

func TestResolveSelectionRestoresCachedState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, pins := newTestBank(t, 3, nil, nil)

	require.NoError(t, b.SetOn(0))
	p := logic.BlinkParams{PeriodMs: 1000, Infinite: true}
	gen, err := b.Admit(2, p.PeriodMs)
	require.NoError(t, err)
	require.NoError(t, b.Step(ctx, 2, p, gen, 100))

	// the gesture left every LED lit
	for _, pin := range pins {
		pin.Set(LevelOn)
	}
	blinkWrites := len(pins[2].Writes())

	_, err = b.ResolveSelection()
	require.NoError(t, err)

	assert.Equal(t, LevelOn, pins[0].Value())
	assert.Equal(t, LevelOff, pins[1].Value())
	assert.Len(t, pins[2].Writes(), blinkWrites, "blinking led is left to its session")
}

func TestWalkStopsWhenLockIsTaken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lock := gestureLock()
	// The release is handled between the third held check and its write.
	var calls atomic.Int32
	held := func() bool {
		if calls.Add(1) == 3 {
			lock.Set(LockLedCtrl)
		}
		return true
	}
	b, pins := newTestBank(t, 4, held, lock)

	require.NoError(t, b.Walk(ctx))
	waitWalkDone(t, b)

	assert.Equal(t, LevelOn, pins[0].Value())
	assert.Equal(t, LevelOff, pins[1].Value())
	for _, p := range pins[1:] {
		// Init, blank
		assert.Equal(t, []int{LevelOff, LevelOff}, p.Writes())
	}
	assert.Empty(t, b.Feedback())
}

func TestNoWalkWriteAfterSelectionResolved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lock := gestureLock()
	b, pins := newTestBank(t, 3, func() bool { return true }, lock)

	require.NoError(t, b.Walk(ctx))
	lock.Set(LockLedCtrl)
	_, err := b.ResolveSelection()
	require.NoError(t, err)
	counts := make([]int, len(pins))
	for i, p := range pins {
		counts[i] = len(p.Writes())
		assert.Equal(t, LevelOff, p.Value())
	}

	waitWalkDone(t, b)
	for i, p := range pins {
		assert.Len(t, p.Writes(), counts[i])
	}
	assert.Empty(t, b.Feedback())
}

func TestRepressSupersedesRunningWalk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pins := gpio.FakePins(gpio.High, 10, 11, 12)
	b := NewBank(gpio.AsPins(pins), func() bool { return true }, gestureLock(),
		Config{TickMs: 10, StepDelay: 20 * time.Millisecond}, quietLogger())
	require.NoError(t, b.Init())

	require.NoError(t, b.Walk(ctx))
	require.NoError(t, b.Walk(ctx))

	select {
	case fb := <-b.Feedback():
		assert.Equal(t, logic.FeedbackButtonPressed, fb.Type)
	case <-time.After(time.Second):
		t.Fatal("gesture did not complete a loop")
	}
	waitWalkDone(t, b)
	assert.Empty(t, b.Feedback())

	for _, p := range pins {
		writes := p.Writes()
		lit := 0
		for _, w := range writes {
			if w == LevelOn {
				lit++
			}
		}
		assert.Equal(t, 1, lit)
		assert.Equal(t, []int{LevelOn, LevelOff}, writes[len(writes)-2:])
	}
}
