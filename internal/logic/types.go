// Package logic contains the protocol translator: it turns decoded
// transport commands and hardware feedback into an ordered queue of
// actions. This package does no I/O and starts no goroutines; the
// controller drains the queue and performs the side effects.
package logic

import (
	"fmt"

	"github.com/sweeney/io-manager/internal/envelope"
)

// Mode selects the LED event-code encoding.
type Mode string

const (
	ModeAi   Mode = "Ai"
	ModeHc   Mode = "Hc"
	ModeNone Mode = "None"
)

// ParseMode accepts "Ai", "Hc" or "None" (case-sensitive, empty is None).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAi, ModeHc, ModeNone:
		return Mode(s), nil
	case "":
		return ModeNone, nil
	}
	return ModeNone, fmt.Errorf("unknown device mode %q (want Ai, Hc or None)", s)
}

// ActionType identifies what the controller must do.
type ActionType string

const (
	ActionKeepAlive        ActionType = "KEEP_ALIVE"
	ActionLedOn            ActionType = "LED_ON"
	ActionLedOff           ActionType = "LED_OFF"
	ActionLedBlink         ActionType = "LED_BLINK"
	ActionLedBlinkContinue ActionType = "LED_BLINK_CONTINUE"
	ActionRelayOn          ActionType = "RELAY_ON"
	ActionRelayOff         ActionType = "RELAY_OFF"
	ActionConfigRelay      ActionType = "CONFIG_RELAY"
	ActionStop             ActionType = "STOP"
	ActionButtonBlink      ActionType = "BUTTON_BLINK"
	ActionReturnState      ActionType = "RETURN_STATE"
	ActionCheckTempCPU     ActionType = "CHECK_TEMP_CPU"
)

// MutatesLeds reports whether the action writes LED hardware and must
// therefore wait while the button gesture owns the LEDs.
func (t ActionType) MutatesLeds() bool {
	switch t {
	case ActionLedOn, ActionLedOff, ActionLedBlink, ActionLedBlinkContinue:
		return true
	}
	return false
}

// BlinkParams describes a blink session.
type BlinkParams struct {
	// PeriodMs is the toggle period. It doubles as the session token.
	PeriodMs uint16
	// Toggles is the number of toggles before a finite session stops.
	Toggles uint8
	// Infinite sessions never stop on their own.
	Infinite bool
}

// Action is one unit of work for the controller.
type Action struct {
	Type ActionType
	// Led is the LED index for LED actions.
	Led int
	// Blink is set for blink actions.
	Blink BlinkParams
	// Generation identifies the blink session a continuation belongs to.
	Generation uint32
	// Relay is the relay index for relay actions.
	Relay int
	// Request is the command that caused a relay action, echoed back on
	// the status reply.
	Request envelope.Envelope
}

// FeedbackType identifies a hardware event.
type FeedbackType string

const (
	FeedbackStop             FeedbackType = "STOP"
	FeedbackBlinkContinue    FeedbackType = "BLINK_CONTINUE"
	FeedbackButtonPressed    FeedbackType = "BUTTON_PRESSED"
	FeedbackButtonReleased   FeedbackType = "BUTTON_RELEASED"
	FeedbackLedTwoReleased   FeedbackType = "LED_TWO_RELEASED"
	FeedbackLedThreeReleased FeedbackType = "LED_THREE_RELEASED"
	FeedbackLedFourReleased  FeedbackType = "LED_FOUR_RELEASED"
	FeedbackLedFiveReleased  FeedbackType = "LED_FIVE_RELEASED"
)

// IsSelection reports whether the feedback is a gesture selection result.
func (t FeedbackType) IsSelection() bool {
	switch t {
	case FeedbackLedTwoReleased, FeedbackLedThreeReleased, FeedbackLedFourReleased, FeedbackLedFiveReleased:
		return true
	}
	return false
}

// Feedback is a hardware event. Err is set instead of Type when the
// producing operation failed.
type Feedback struct {
	Type       FeedbackType
	Led        int
	Blink      BlinkParams
	Generation uint32
	Err        error
}

// Counts tracks what the engine has seen since startup.
type Counts struct {
	Commands        int
	Ignored         int
	DecodeErrors    int
	TransportErrors int
	HardwareErrors  int
}
