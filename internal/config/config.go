// Package config loads io-manager settings.
//
// Values are resolved in order: built-in defaults, then the YAML file (if
// any), then IO_MANAGER_* environment variables. The result is validated
// before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/io-manager/internal/logic"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IO_MANAGER_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full daemon configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	Timing      TimingConfig      `yaml:"timing"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Logging     LoggingConfig     `yaml:"logging"`
	HTTP        HTTPConfig        `yaml:"http"`
}

// DeviceConfig identifies this device.
type DeviceConfig struct {
	// Mode is Ai, Hc or None.
	Mode string `yaml:"mode"`
	// Identity is matched against the device part of relay hashes.
	Identity string `yaml:"identity"`
}

// MQTTConfig contains broker settings.
type MQTTConfig struct {
	Broker     string        `yaml:"broker"`
	ClientID   string        `yaml:"client_id"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	KeepAlive  time.Duration `yaml:"keepalive"`
	BufferSize int           `yaml:"buffer_size"`
}

// GPIOConfig lists line offsets on one chip.
type GPIOConfig struct {
	Chip   string `yaml:"chip"`
	LEDs   []int  `yaml:"leds"`
	Relays []int  `yaml:"relays"`
	Fans   []int  `yaml:"fans"`
	Button int    `yaml:"button"`
}

// TimingConfig contains loop timing.
type TimingConfig struct {
	Tick time.Duration `yaml:"tick"`
	// KeepAliveTicks is the number of ticks between keepalive publishes
	// and temperature checks.
	KeepAliveTicks int           `yaml:"keepalive_ticks"`
	GestureStep    time.Duration `yaml:"gesture_step"`
	// DeferDelay is how long an LED action waits before it is re-queued
	// while the gesture owns the LEDs.
	DeferDelay time.Duration `yaml:"defer_delay"`
}

// TemperatureConfig locates the CPU temperature source.
type TemperatureConfig struct {
	Path         string `yaml:"path"`
	Millidegrees bool   `yaml:"millidegrees"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HTTPConfig contains the status server settings. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Mode:     string(logic.ModeAi),
			Identity: "Mi8ea43769e4d6Qb",
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			ClientID:   "io_service",
			KeepAlive:  5 * time.Second,
			BufferSize: 64,
		},
		GPIO: GPIOConfig{
			Chip:   "gpiochip0",
			LEDs:   []int{10, 11, 12, 13},
			Button: 14,
		},
		Timing: TimingConfig{
			Tick:           100 * time.Millisecond,
			KeepAliveTicks: 400,
			GestureStep:    time.Second,
			DeferDelay:     100 * time.Millisecond,
		},
		Temperature: TemperatureConfig{
			Path:         "/sys/class/thermal/thermal_zone0/temp",
			Millidegrees: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	pins := func(key string, dst *[]int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		p, err := ParsePins(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = p
		return nil
	}

	str("DEVICE_MODE", &cfg.Device.Mode)
	str("DEVICE_IDENTITY", &cfg.Device.Identity)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("GPIO_CHIP", &cfg.GPIO.Chip)
	str("TEMPERATURE_PATH", &cfg.Temperature.Path)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	if v, ok := lookup(EnvPrefix + "HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}

	for key, dst := range map[string]*[]int{
		"GPIO_LEDS":   &cfg.GPIO.LEDs,
		"GPIO_RELAYS": &cfg.GPIO.Relays,
		"GPIO_FANS":   &cfg.GPIO.Fans,
	} {
		if err := pins(key, dst); err != nil {
			return err
		}
	}
	if v, ok := lookup(EnvPrefix + "GPIO_BUTTON"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sGPIO_BUTTON: %w", EnvPrefix, err)
		}
		cfg.GPIO.Button = n
	}
	return nil
}

// ParsePins parses a comma-separated list of line offsets. Empty input
// gives no pins.
func ParsePins(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad pin %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []string

	if _, err := logic.ParseMode(c.Device.Mode); err != nil {
		errs = append(errs, "device.mode: "+err.Error())
	}
	if c.Device.Identity == "" {
		errs = append(errs, "device.identity is required")
	} else if strings.Contains(c.Device.Identity, "-") {
		errs = append(errs, "device.identity must not contain '-'")
	}

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keepalive must not be negative")
	}

	if c.GPIO.Chip == "" {
		errs = append(errs, "gpio.chip is required")
	}
	seen := map[int]string{}
	check := func(name string, offset int) {
		if offset < 0 {
			errs = append(errs, fmt.Sprintf("gpio.%s: offset %d is negative", name, offset))
			return
		}
		if prev, dup := seen[offset]; dup {
			errs = append(errs, fmt.Sprintf("gpio.%s: offset %d already used by %s", name, offset, prev))
			return
		}
		seen[offset] = name
	}
	for _, o := range c.GPIO.LEDs {
		check("leds", o)
	}
	for _, o := range c.GPIO.Relays {
		check("relays", o)
	}
	for _, o := range c.GPIO.Fans {
		check("fans", o)
	}
	check("button", c.GPIO.Button)

	if c.Timing.Tick <= 0 {
		errs = append(errs, "timing.tick must be positive")
	}
	if c.Timing.KeepAliveTicks <= 0 {
		errs = append(errs, "timing.keepalive_ticks must be positive")
	}
	if c.Timing.GestureStep < 0 {
		errs = append(errs, "timing.gesture_step must not be negative")
	}
	if c.Timing.DeferDelay <= 0 {
		errs = append(errs, "timing.defer_delay must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// DeviceMode returns the parsed device mode. Call after Validate.
func (c *Config) DeviceMode() logic.Mode {
	m, _ := logic.ParseMode(c.Device.Mode)
	return m
}
