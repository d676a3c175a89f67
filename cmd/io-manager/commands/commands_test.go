package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/io-manager/internal/config"
	"github.com/sweeney/io-manager/internal/gpio"
	"github.com/sweeney/io-manager/internal/mqtt"
)

// fakeChip hands out one FakePin per offset, created at the released level.
type fakeChip struct {
	mu   sync.Mutex
	pins map[int]*gpio.FakePin
}

func newFakeChip() *fakeChip {
	return &fakeChip{pins: make(map[int]*gpio.FakePin)}
}

func (c *fakeChip) Pin(offset int) gpio.Pin {
	return c.fake(offset)
}

func (c *fakeChip) fake(offset int) *gpio.FakePin {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pins[offset]
	if !ok {
		p = gpio.NewFakePin(offset, gpio.High)
		c.pins[offset] = p
	}
	return p
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.GPIO.Relays = []int{20, 21}
	cfg.GPIO.Fans = []int{22, 23}
	cfg.HTTP.Addr = ""
	cfg.Timing.KeepAliveTicks = 1
	cfg.Timing.GestureStep = time.Millisecond

	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("55000\n"), 0o644))
	cfg.Temperature.Path = path
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd(&flags{})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "io-manager")
}

func TestRootRejectsUnknownFlags(t *testing.T) {
	cmd := newRootCmd(&flags{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--no-such-flag"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	cfg, err := loadConfig(&flags{
		broker:   "tcp://hub:1883",
		mode:     "Hc",
		identity: "abc123",
		httpAddr: "off",
		logLevel: "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "tcp://hub:1883", cfg.MQTT.Broker)
	assert.Equal(t, "Hc", cfg.Device.Mode)
	assert.Equal(t, "abc123", cfg.Device.Identity)
	assert.Empty(t, cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigRejectsBadOverride(t *testing.T) {
	_, err := loadConfig(&flags{mode: "Zz"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "io-manager.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  mode: Hc\nhttp:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := loadConfig(&flags{configPath: path, httpAddr: ":9191"})
	require.NoError(t, err)
	assert.Equal(t, "Hc", cfg.Device.Mode)
	assert.Equal(t, ":9191", cfg.HTTP.Addr)
}

func TestOpenHardwareClaimsLines(t *testing.T) {
	cfg := testConfig(t)
	chip := newFakeChip()

	hw, err := openHardware(cfg, chip, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, gpio.In, chip.fake(cfg.GPIO.Button).Direction())
	for _, o := range append(append([]int{}, cfg.GPIO.LEDs...), cfg.GPIO.Relays...) {
		p := chip.fake(o)
		assert.Equal(t, gpio.Out, p.Direction(), "line %d", o)
		assert.Equal(t, gpio.High, p.Value(), "line %d starts off", o)
	}
	assert.Equal(t, gpio.Low, chip.fake(22).Value(), "fans start at the lowest level")

	require.NoError(t, hw.Close())
	for o, p := range chip.pins {
		assert.True(t, p.Closed(), "line %d", o)
	}
}

func TestOpenHardwareReleasesOnFailure(t *testing.T) {
	cfg := testConfig(t)
	chip := newFakeChip()
	chip.fake(cfg.GPIO.Relays[1]).ExportError = errors.New("busy")

	_, err := openHardware(cfg, chip, quietLogger())
	require.ErrorIs(t, err, gpio.ErrSelectPin)

	assert.True(t, chip.fake(cfg.GPIO.Button).Closed())
	for _, o := range cfg.GPIO.LEDs {
		assert.True(t, chip.fake(o).Closed(), "led line %d", o)
	}
}

func relayCommand(identity string, index int, on bool) []byte {
	return []byte(fmt.Sprintf(`{"cmd":"set","control_source":{"id":"u","type":"app"},"objects":[{"data":["io-%s-%d"],"execution":{"params":{"on":%t}}}],"reqid":"q1","source":"app"}`, identity, index, on))
}

func TestServe(t *testing.T) {
	cfg := testConfig(t)
	chip := newFakeChip()
	hw, err := openHardware(cfg, chip, quietLogger())
	require.NoError(t, err)
	defer hw.Close()

	transport := mqtt.NewFakeTransport()
	tick := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, hw, transport, transport, quietLogger(), tick) }()

	tick <- time.Now()
	require.Eventually(t, func() bool {
		return len(transport.PublicationsTo(mqtt.TopicKeepAlive)) == 1
	}, time.Second, time.Millisecond)
	// 55 °C rising from nothing is the middle level.
	require.Eventually(t, func() bool {
		return chip.fake(22).Value() == gpio.Low && chip.fake(23).Value() == gpio.High
	}, time.Second, time.Millisecond)

	transport.Deliver("component/io/control", relayCommand(cfg.Device.Identity, 1, true))
	require.Eventually(t, func() bool {
		return len(transport.PublicationsTo(mqtt.TopicStatus)) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, gpio.Low, chip.fake(21).Value())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServeEndsWhenTransportCloses(t *testing.T) {
	cfg := testConfig(t)
	hw, err := openHardware(cfg, newFakeChip(), quietLogger())
	require.NoError(t, err)
	defer hw.Close()

	transport := mqtt.NewFakeTransport()
	transport.DeliverError(mqtt.ErrTransportClosed)

	err = serve(context.Background(), cfg, hw, transport, transport, quietLogger(), nil)
	assert.ErrorIs(t, err, mqtt.ErrTransportClosed)
}

func TestPrintState(t *testing.T) {
	cfg := testConfig(t)
	chip := newFakeChip()
	chip.fake(cfg.GPIO.Button).Set(gpio.Low)
	chip.fake(cfg.GPIO.LEDs[2]).Set(gpio.Low)
	chip.fake(cfg.GPIO.Relays[0]).ReadError = errors.New("gone")

	buf := new(bytes.Buffer)
	require.NoError(t, printState(buf, cfg, chip))

	out := buf.String()
	assert.Contains(t, out, "PRESSED")
	assert.Regexp(t, `led 2 +12  .*ON`, out)
	assert.Regexp(t, `led 0 +10  .*OFF`, out)
	assert.Regexp(t, `relay 0 +20  .*ERROR`, out)
	for o, p := range chip.pins {
		assert.True(t, p.Closed(), "line %d", o)
	}
}
