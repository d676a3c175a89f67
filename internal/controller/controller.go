// Package controller is the single reactor that owns the logic engine and
// all hardware. It merges the tick, inbound transport messages, LED
// feedback and button transitions, and after each event drains the
// engine's action queue.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/io-manager/internal/button"
	"github.com/sweeney/io-manager/internal/envelope"
	"github.com/sweeney/io-manager/internal/fan"
	"github.com/sweeney/io-manager/internal/led"
	"github.com/sweeney/io-manager/internal/logic"
	"github.com/sweeney/io-manager/internal/mqtt"
	"github.com/sweeney/io-manager/internal/relay"
	"github.com/sweeney/io-manager/internal/status"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultKeepAliveTicks = 400
	DefaultDeferDelay     = 100 * time.Millisecond
)

// Config wires the controller to its collaborators.
type Config struct {
	Engine    *logic.Engine
	LEDs      *led.Bank
	Lock      *led.Lock
	Relays    *relay.Bank
	Button    *button.Monitor
	Fan       *fan.Controller
	Transport mqtt.Transport
	// Connection, if set, is polled for the status page.
	Connection mqtt.ConnectionStatus
	// Tracker, if set, receives a snapshot after every event.
	Tracker *status.Tracker
	// ReadTemperature returns the CPU temperature in °C.
	ReadTemperature func() (int, error)

	KeepAliveTicks int
	DeferDelay     time.Duration
	// Sleep waits out a deferral. It returns false if ctx ended first.
	Sleep func(ctx context.Context, d time.Duration) bool

	Logger *slog.Logger
}

// outboxStatus is implemented by transports that buffer while offline.
type outboxStatus interface {
	Buffered() int
	Dropped() int
}

// Controller runs the event loop. It is not safe for concurrent use;
// everything it owns is touched only from Run.
type Controller struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a controller. Engine, LEDs, Lock, Relays, Button and
// Transport are required.
func New(cfg Config) *Controller {
	if cfg.KeepAliveTicks <= 0 {
		cfg.KeepAliveTicks = DefaultKeepAliveTicks
	}
	if cfg.DeferDelay <= 0 {
		cfg.DeferDelay = DefaultDeferDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{cfg: cfg, logger: cfg.Logger}
}

// Run services one event source per iteration until ctx is cancelled or
// the transport closes. Cancellation returns nil; a closed transport
// returns an error wrapping mqtt.ErrTransportClosed.
func (c *Controller) Run(ctx context.Context, tick <-chan time.Time) error {
	c.refresh()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			c.onTick()

		case in := <-c.cfg.Transport.Messages():
			if errors.Is(in.Err, mqtt.ErrTransportClosed) {
				return fmt.Errorf("controller: %w", in.Err)
			}
			c.cfg.Engine.OnTransport(in.Envelope, in.Err)

		case fb := <-c.cfg.LEDs.Feedback():
			c.cfg.Engine.OnHardware(fb)

		case fb := <-c.cfg.Button.Events():
			c.cfg.Engine.OnHardware(fb)
		}

		c.drain(ctx)
		c.refresh()
	}
}

func (c *Controller) onTick() {
	if err := c.cfg.Button.Poll(); err != nil {
		c.cfg.Engine.OnHardware(logic.Feedback{Err: err})
	}
	n := c.cfg.Engine.Tick()
	if n%uint64(c.cfg.KeepAliveTicks) == 0 {
		c.cfg.Engine.Push(logic.Action{Type: logic.ActionKeepAlive})
		c.cfg.Engine.Push(logic.Action{Type: logic.ActionCheckTempCPU})
	}
}

// drain runs queued actions in order. While the gesture owns the LEDs an
// LED action waits DeferDelay, goes to the back of the queue and ends
// the pass; the next event resumes draining.
func (c *Controller) drain(ctx context.Context) {
	for {
		a, ok := c.cfg.Engine.Pop()
		if !ok {
			return
		}
		if a.Type.MutatesLeds() && c.cfg.Lock.Gesture() {
			c.logger.Debug("led action deferred", "action", a.Type, "led", a.Led)
			if c.cfg.Tracker != nil {
				c.cfg.Tracker.RecordDeferral()
			}
			c.cfg.Sleep(ctx, c.cfg.DeferDelay)
			c.cfg.Engine.Push(a)
			return
		}
		c.execute(ctx, a)
	}
}

func (c *Controller) execute(ctx context.Context, a logic.Action) {
	switch a.Type {
	case logic.ActionLedOn:
		c.hardware(c.cfg.LEDs.SetOn(a.Led))

	case logic.ActionLedOff:
		c.hardware(c.cfg.LEDs.SetOff(a.Led))

	case logic.ActionLedBlink:
		c.cfg.Lock.Set(led.LockBlink)
		gen, err := c.cfg.LEDs.Admit(a.Led, a.Blink.PeriodMs)
		if errors.Is(err, led.ErrDuplicateSession) {
			c.logger.Debug("blink already running", "led", a.Led, "period_ms", a.Blink.PeriodMs)
			return
		}
		c.hardware(c.cfg.LEDs.Step(ctx, a.Led, a.Blink, gen, c.cfg.Engine.CurrentTick()))

	case logic.ActionLedBlinkContinue:
		c.hardware(c.cfg.LEDs.Step(ctx, a.Led, a.Blink, a.Generation, c.cfg.Engine.CurrentTick()))

	case logic.ActionButtonBlink:
		// A round reported by the gesture can arrive after the release.
		if !c.cfg.Button.Held() {
			c.logger.Debug("button released, gesture not started")
			return
		}
		c.cfg.Lock.Set(led.LockButtonGesture)
		c.hardware(c.cfg.LEDs.Walk(ctx))

	case logic.ActionReturnState:
		c.cfg.Lock.Set(led.LockLedCtrl)
		sel, err := c.cfg.LEDs.ResolveSelection()
		c.hardware(err)
		c.cfg.Engine.OnHardware(sel)

	case logic.ActionRelayOn, logic.ActionRelayOff:
		c.relay(a)

	case logic.ActionConfigRelay:
		cfgEnv, statusEnv := envelope.Sync(c.cfg.Engine.Identity(), c.cfg.Relays.Snapshot())
		c.publish(mqtt.TopicConfig, cfgEnv)
		c.publish(mqtt.TopicStatus, statusEnv)

	case logic.ActionKeepAlive:
		c.logger.Debug("keepalive")
		c.publish(mqtt.TopicKeepAlive, envelope.KeepAlive())

	case logic.ActionCheckTempCPU:
		c.checkTemperature()

	case logic.ActionStop:
		c.logger.Debug("stop")

	default:
		c.logger.Warn("unknown action", "action", a.Type)
	}
}

// relay drives the relay and reports its new state, echoing the request.
// A failed write stops the action without a reply.
func (c *Controller) relay(a logic.Action) {
	on := a.Type == logic.ActionRelayOn
	var err error
	if on {
		err = c.cfg.Relays.SetOn(a.Relay)
	} else {
		err = c.cfg.Relays.SetOff(a.Relay)
	}
	if err != nil {
		c.hardware(err)
		return
	}
	reply := envelope.Status(a.Request, c.cfg.Engine.Identity(), []envelope.RelayState{{Index: a.Relay, On: on}})
	c.publish(mqtt.TopicStatus, reply)
}

func (c *Controller) checkTemperature() {
	if c.cfg.Fan == nil || c.cfg.ReadTemperature == nil {
		return
	}
	temp, err := c.cfg.ReadTemperature()
	if err != nil {
		c.logger.Warn("read cpu temperature", "error", err)
		if c.cfg.Tracker != nil {
			c.cfg.Tracker.SetTempError(err)
		}
		return
	}
	level, changed, err := c.cfg.Fan.Update(temp)
	if err != nil {
		c.hardware(err)
	}
	if changed {
		c.logger.Info("fan level", "level", level, "temp_c", temp)
	}
	if c.cfg.Tracker != nil {
		c.cfg.Tracker.SetFan(level.String(), temp)
	}
}

func (c *Controller) publish(topic string, out envelope.Outbound) {
	err := mqtt.PublishEnvelope(c.cfg.Transport, topic, out)
	if err != nil {
		c.logger.Warn("publish failed", "topic", topic, "error", err)
	}
	if c.cfg.Tracker != nil {
		c.cfg.Tracker.RecordPublish(err)
	}
}

// hardware feeds a failed hardware operation back to the engine.
func (c *Controller) hardware(err error) {
	if err != nil {
		c.cfg.Engine.OnHardware(logic.Feedback{Err: err})
	}
}

func (c *Controller) refresh() {
	t := c.cfg.Tracker
	if t == nil {
		return
	}
	e := c.cfg.Engine
	t.UpdateEngine(e.CurrentTick(), e.Counts(), e.LastSelection())

	states := c.cfg.LEDs.Snapshot()
	leds := make([]string, len(states))
	for i, s := range states {
		leds[i] = string(s)
	}
	t.UpdateOutputs(leds, c.cfg.Relays.Snapshot())
	t.SetLock(c.cfg.Lock.Status().String())
	if c.cfg.Connection != nil {
		t.SetMQTTConnected(c.cfg.Connection.IsConnected())
	}
	if o, ok := c.cfg.Connection.(outboxStatus); ok {
		t.SetOutbox(o.Buffered(), o.Dropped())
	}
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
