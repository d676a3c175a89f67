package logic

import (
	"errors"
	"log/slog"

	"github.com/sweeney/io-manager/internal/envelope"
)

// Event-code state digits.
const (
	digitBlink = 1
	digitOff   = 2
	digitOn    = 3
)

// hcBlink is the blink used for Hc state digit 1: twenty toggles, one per tick.
var hcBlink = BlinkParams{PeriodMs: 100, Toggles: 20}

// pattern is what an indicator does for one state digit.
type pattern struct {
	typ   ActionType
	blink BlinkParams
}

var (
	ledOn  = pattern{typ: ActionLedOn}
	ledOff = pattern{typ: ActionLedOff}
)

func blinkForever(periodMs uint16) pattern {
	return pattern{typ: ActionLedBlink, blink: BlinkParams{PeriodMs: periodMs, Infinite: true}}
}

func blinkOnce(periodMs uint16) pattern {
	return pattern{typ: ActionLedBlink, blink: BlinkParams{PeriodMs: periodMs}}
}

// indicator maps the state digit of an Ai event code onto one LED.
type indicator struct {
	led   int
	off   pattern
	on    pattern
	other pattern
}

func (ind indicator) action(code uint32) Action {
	p := ind.other
	switch code % 10 {
	case digitOff:
		p = ind.off
	case digitOn:
		p = ind.on
	}
	return Action{Type: p.typ, Led: ind.led, Blink: p.blink}
}

var (
	networkIndicator   = indicator{led: 0, off: ledOff, on: blinkForever(1000), other: blinkForever(1000)}
	serverIndicator    = indicator{led: 0, off: blinkForever(2000), on: ledOn, other: blinkOnce(1000)}
	aiModuleIndicator  = indicator{led: 1, off: ledOff, on: ledOn, other: blinkOnce(1000)}
	zigbeeIndicator    = indicator{led: 2, off: ledOff, on: ledOn, other: blinkForever(1000)}
	bluetoothIndicator = indicator{led: 3, off: ledOff, on: ledOn, other: blinkForever(1000)}
)

// Ai event codes.
const (
	CodeInternetUnavailable   = 22
	CodeInternetAvailable     = 23
	CodeServerDisconnected    = 32
	CodeServerConnected       = 33
	CodeServerMessage         = 3311
	CodeAIDisconnected        = 72
	CodeAIConnected           = 73
	CodeAIDetected            = 7311
	CodeZigbeeDisconnected    = 42
	CodeZigbeeConnected       = 43
	CodeZigbeeJoinNetwork     = 4401
	CodeBluetoothDisconnected = 52
	CodeBluetoothConnected    = 53
	CodeBluetoothJoinNetwork  = 5401
)

var aiCodes = map[uint32]indicator{
	CodeInternetUnavailable:   networkIndicator,
	CodeInternetAvailable:     networkIndicator,
	CodeServerDisconnected:    serverIndicator,
	CodeServerConnected:       serverIndicator,
	CodeServerMessage:         serverIndicator,
	CodeAIDisconnected:        aiModuleIndicator,
	CodeAIConnected:           aiModuleIndicator,
	CodeAIDetected:            aiModuleIndicator,
	CodeZigbeeDisconnected:    zigbeeIndicator,
	CodeZigbeeConnected:       zigbeeIndicator,
	CodeZigbeeJoinNetwork:     zigbeeIndicator,
	CodeBluetoothDisconnected: bluetoothIndicator,
	CodeBluetoothConnected:    bluetoothIndicator,
	CodeBluetoothJoinNetwork:  bluetoothIndicator,
}

// Engine translates inbound events into actions.
// Not safe for concurrent use; the controller owns it.
type Engine struct {
	mode     Mode
	identity string
	tick     uint64
	queue    []Action
	counts   Counts
	selected FeedbackType
	logger   *slog.Logger
}

// NewEngine creates an engine for the given device mode and identity.
func NewEngine(mode Mode, identity string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mode:     mode,
		identity: identity,
		logger:   logger,
	}
}

// Mode returns the device mode.
func (e *Engine) Mode() Mode { return e.mode }

// Identity returns the device identity string.
func (e *Engine) Identity() string { return e.identity }

// Tick advances the tick counter and returns the new value.
func (e *Engine) Tick() uint64 {
	e.tick++
	return e.tick
}

// CurrentTick returns the tick counter.
func (e *Engine) CurrentTick() uint64 { return e.tick }

// Counts returns a copy of the engine counters.
func (e *Engine) Counts() Counts { return e.counts }

// LastSelection returns the most recent gesture selection, or "" if none.
func (e *Engine) LastSelection() FeedbackType { return e.selected }

// Push appends an action to the back of the queue.
func (e *Engine) Push(a Action) {
	e.queue = append(e.queue, a)
}

// Pop removes and returns the action at the front of the queue.
func (e *Engine) Pop() (Action, bool) {
	if len(e.queue) == 0 {
		return Action{}, false
	}
	a := e.queue[0]
	e.queue[0] = Action{}
	e.queue = e.queue[1:]
	return a, true
}

// Len returns the number of queued actions.
func (e *Engine) Len() int { return len(e.queue) }

// OnTransport handles one result from the transport. A non-nil err is a
// failed receive or an undecodable payload; it is counted and produces no
// action.
func (e *Engine) OnTransport(env envelope.Envelope, err error) {
	if errors.Is(err, envelope.ErrDecode) {
		e.counts.DecodeErrors++
		e.logger.Warn("undecodable message", "error", err)
		return
	}
	if err != nil {
		e.counts.TransportErrors++
		e.logger.Warn("transport error", "error", err)
		return
	}
	e.counts.Commands++

	switch env.Cmd {
	case envelope.CmdSet:
		if env.HasControlSource() {
			e.handleRelay(env)
		} else {
			e.handleLed(env)
		}
	case envelope.CmdGet:
		if e.mode == ModeAi {
			e.Push(Action{Type: ActionConfigRelay})
		}
	default:
		e.counts.Ignored++
	}
}

func (e *Engine) handleRelay(env envelope.Envelope) {
	device, relay, on := env.RelayTarget()
	if device != e.identity {
		e.logger.Debug("relay command for another device", "device", device)
		e.counts.Ignored++
		return
	}
	typ := ActionRelayOff
	if on {
		typ = ActionRelayOn
	}
	e.logger.Info("relay command", "relay", relay, "on", on)
	e.Push(Action{Type: typ, Relay: relay, Request: env})
}

func (e *Engine) handleLed(env envelope.Envelope) {
	code, ok, err := env.EventCode()
	if err != nil {
		e.counts.DecodeErrors++
		e.logger.Warn("bad led command", "error", err)
		return
	}
	if !ok {
		e.counts.Ignored++
		return
	}
	e.logger.Info("led command", "event_code", code, "mode", e.mode)

	if e.mode == ModeHc {
		e.Push(hcAction(code))
		return
	}
	ind, known := aiCodes[code]
	if !known {
		e.counts.Ignored++
		return
	}
	e.Push(ind.action(code))
}

// hcAction decodes an Hc event code: the tens give the LED (offset by 2),
// the last digit the state.
func hcAction(code uint32) Action {
	group := code / 10
	if group < 2 {
		return Action{Type: ActionStop}
	}
	led := int(group - 2)
	switch code % 10 {
	case digitOn:
		return Action{Type: ActionLedOn, Led: led}
	case digitOff:
		return Action{Type: ActionLedOff, Led: led}
	case digitBlink:
		return Action{Type: ActionLedBlink, Led: led, Blink: hcBlink}
	}
	return Action{Type: ActionStop}
}

// OnHardware handles feedback from the LED bank and the button monitor.
func (e *Engine) OnHardware(fb Feedback) {
	if fb.Err != nil {
		e.counts.HardwareErrors++
		e.logger.Warn("hardware error", "error", fb.Err)
		return
	}
	switch fb.Type {
	case FeedbackBlinkContinue:
		e.Push(Action{Type: ActionLedBlinkContinue, Led: fb.Led, Blink: fb.Blink, Generation: fb.Generation})
	case FeedbackStop:
		e.Push(Action{Type: ActionStop})
	case FeedbackButtonPressed:
		e.logger.Info("button pressed")
		e.Push(Action{Type: ActionButtonBlink})
	case FeedbackButtonReleased:
		e.logger.Info("button released")
		e.Push(Action{Type: ActionReturnState})
	default:
		if fb.Type.IsSelection() {
			e.onSelection(fb.Type)
		}
	}
}

// onSelection receives the LED picked by a completed gesture. Selections
// are recorded but have no further effect yet.
func (e *Engine) onSelection(sel FeedbackType) {
	e.logger.Info("gesture selection", "selection", sel)
	e.selected = sel
}
