package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/io-manager/internal/button"
	"github.com/sweeney/io-manager/internal/config"
	"github.com/sweeney/io-manager/internal/controller"
	"github.com/sweeney/io-manager/internal/fan"
	"github.com/sweeney/io-manager/internal/gpio"
	"github.com/sweeney/io-manager/internal/led"
	"github.com/sweeney/io-manager/internal/logging"
	"github.com/sweeney/io-manager/internal/logic"
	"github.com/sweeney/io-manager/internal/mqtt"
	"github.com/sweeney/io-manager/internal/relay"
	"github.com/sweeney/io-manager/internal/status"
	"github.com/sweeney/io-manager/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, f)
		},
	}
}

func runDaemon(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, version)
	slog.SetDefault(logger)

	chip, err := gpio.OpenChip(cfg.GPIO.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	hw, err := openHardware(cfg, chip, logger)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warn("release gpio", "error", err)
		}
	}()

	client, err := mqtt.Connect(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		KeepAlive:  cfg.MQTT.KeepAlive,
		BufferSize: cfg.MQTT.BufferSize,
		Logger:     logger.With("component", "mqtt"),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Timing.Tick)
	defer ticker.Stop()

	logger.Info("started",
		"mode", cfg.Device.Mode,
		"identity", cfg.Device.Identity,
		"broker", cfg.MQTT.Broker,
		"tick", cfg.Timing.Tick,
		"leds", len(cfg.GPIO.LEDs),
		"relays", len(cfg.GPIO.Relays),
	)
	err = serve(ctx, cfg, hw, client, client, logger, ticker.C)
	logger.Info("shutting down")
	return err
}

// serve wires the engine, status page and controller around already
// initialised hardware and runs until ctx ends or the transport closes.
func serve(ctx context.Context, cfg *config.Config, hw *hardware, transport mqtt.Transport, conn mqtt.ConnectionStatus, logger *slog.Logger, tick <-chan time.Time) error {
	mode := cfg.DeviceMode()
	engine := logic.NewEngine(mode, cfg.Device.Identity, logger.With("component", "logic"))

	tracker := status.NewTracker(time.Now(), mode, cfg.Device.Identity, status.Config{
		TickMs:         cfg.Timing.Tick.Milliseconds(),
		KeepAliveTicks: cfg.Timing.KeepAliveTicks,
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.With("component", "web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(sctx)
		}()
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	temp := cfg.Temperature
	ctrl := controller.New(controller.Config{
		Engine:     engine,
		LEDs:       hw.leds,
		Lock:       hw.lock,
		Relays:     hw.relays,
		Button:     hw.button,
		Fan:        hw.fan,
		Transport:  transport,
		Connection: conn,
		Tracker:    tracker,
		ReadTemperature: func() (int, error) {
			return fan.ReadTemperature(temp.Path, temp.Millidegrees)
		},
		KeepAliveTicks: cfg.Timing.KeepAliveTicks,
		DeferDelay:     cfg.Timing.DeferDelay,
		Logger:         logger.With("component", "controller"),
	})
	return ctrl.Run(ctx, tick)
}

// pinSource hands out lines by offset; *gpio.Chip satisfies it.
type pinSource interface {
	Pin(offset int) gpio.Pin
}

type hardware struct {
	lock   *led.Lock
	button *button.Monitor
	leds   *led.Bank
	relays *relay.Bank
	fan    *fan.Controller
}

// openHardware claims every configured line. On failure whatever was
// already claimed is released.
func openHardware(cfg *config.Config, src pinSource, logger *slog.Logger) (_ *hardware, err error) {
	pins := func(offsets []int) []gpio.Pin {
		out := make([]gpio.Pin, len(offsets))
		for i, o := range offsets {
			out[i] = src.Pin(o)
		}
		return out
	}

	hw := &hardware{lock: &led.Lock{}}
	defer func() {
		if err != nil {
			hw.Close()
		}
	}()

	hw.button = button.NewMonitor(src.Pin(cfg.GPIO.Button))
	if err := hw.button.Init(); err != nil {
		return nil, err
	}

	hw.leds = led.NewBank(pins(cfg.GPIO.LEDs), hw.button.Held, hw.lock, led.Config{
		TickMs:    uint64(cfg.Timing.Tick.Milliseconds()),
		StepDelay: cfg.Timing.GestureStep,
	}, logger.With("component", "led"))
	if err := hw.leds.Init(); err != nil {
		return nil, err
	}

	hw.relays = relay.NewBank(pins(cfg.GPIO.Relays))
	if err := hw.relays.Init(); err != nil {
		return nil, err
	}

	hw.fan = fan.NewController(pins(cfg.GPIO.Fans))
	if err := hw.fan.Init(); err != nil {
		return nil, err
	}
	return hw, nil
}

// Close drives outputs off and releases every claimed line.
func (h *hardware) Close() error {
	var errs []error
	if h.leds != nil {
		errs = append(errs, h.leds.Close())
	}
	if h.relays != nil {
		errs = append(errs, h.relays.Close())
	}
	if h.fan != nil {
		errs = append(errs, h.fan.Close())
	}
	if h.button != nil {
		errs = append(errs, h.button.Close())
	}
	return errors.Join(errs...)
}
