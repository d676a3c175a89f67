// Package fan maps CPU temperature onto a discrete fan level with
// hysteresis and drives the fan control lines.
package fan

import (
	"fmt"
	"sync"

	"github.com/sweeney/io-manager/internal/gpio"
)

// Level is a fan speed step.
type Level int

const (
	Lv1 Level = iota + 1
	Lv2
	Lv3
)

func (l Level) String() string {
	switch l {
	case Lv1:
		return "LV1"
	case Lv2:
		return "LV2"
	case Lv3:
		return "LV3"
	default:
		return "UNKNOWN"
	}
}

// Temperature boundaries in °C. The bands (lowBand, midLow] and
// (midHigh, highBand] are ambiguous and resolved by direction of travel.
const (
	lowBand  = 48
	midLow   = 52
	midHigh  = 58
	highBand = 62
)

// Classify picks the level for temp given the previous reading.
func Classify(temp, last int) Level {
	cooling := temp-last < 0
	switch {
	case temp < lowBand:
		return Lv1
	case temp <= midLow:
		if cooling {
			return Lv1
		}
		return Lv2
	case temp <= midHigh:
		return Lv2
	case temp <= highBand:
		if cooling {
			return Lv2
		}
		return Lv3
	default:
		return Lv3
	}
}

// pattern returns the line levels for a fan level; 0 drives a line active.
func pattern(l Level, n int) []int {
	out := make([]int, n)
	for i := range out {
		switch l {
		case Lv1:
			out[i] = gpio.Low
		case Lv2:
			if i != 0 {
				out[i] = gpio.High
			}
		case Lv3:
			if i != 1 {
				out[i] = gpio.High
			}
		}
	}
	return out
}

// Controller owns the fan lines and the last temperature reading.
type Controller struct {
	mu       sync.Mutex
	pins     []gpio.Pin
	lastTemp int
	level    Level
}

// NewController creates a controller over the given fan lines.
func NewController(pins []gpio.Pin) *Controller {
	return &Controller{pins: pins, level: Lv1}
}

// Init claims the fan lines as outputs at the lowest level.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	levels := pattern(Lv1, len(c.pins))
	for i, p := range c.pins {
		if err := gpio.Setup(p, gpio.Out, levels[i]); err != nil {
			return fmt.Errorf("fan %d: %w", i, err)
		}
	}
	c.level = Lv1
	return nil
}

// Update feeds a new reading. An unchanged reading does nothing. The
// reading is always recorded, even when driving the lines fails.
// changed reports whether the level moved.
func (c *Controller) Update(temp int) (Level, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.lastTemp
	c.lastTemp = temp
	if temp == last {
		return c.level, false, nil
	}

	next := Classify(temp, last)
	if err := c.apply(next); err != nil {
		return c.level, false, err
	}
	changed := next != c.level
	c.level = next
	return next, changed, nil
}

func (c *Controller) apply(l Level) error {
	levels := pattern(l, len(c.pins))
	for i, p := range c.pins {
		if err := p.Write(levels[i]); err != nil {
			return fmt.Errorf("fan %d: %w", i, err)
		}
	}
	return nil
}

// Level returns the level currently applied.
func (c *Controller) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// LastTemperature returns the most recent reading.
func (c *Controller) LastTemperature() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTemp
}

// Close releases the fan lines.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for _, p := range c.pins {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
