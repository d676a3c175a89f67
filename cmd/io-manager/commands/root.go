// Package commands holds the io-manager command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sweeney/io-manager/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flags override the configuration file for the common knobs.
type flags struct {
	configPath string
	broker     string
	mode       string
	identity   string
	httpAddr   string
	logLevel   string
}

var rootFlags flags

var rootCmd = newRootCmd(&rootFlags)

func newRootCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "io-manager",
		Short: "GPIO manager for the hub's LEDs, relays and fan",
		Long: `io-manager owns the hub's indicator LEDs, relay outputs, push button
and cooling fan. It executes LED and relay commands received over MQTT,
reports relay state back, and publishes a keepalive.

Without a subcommand it runs the daemon.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	pf.StringVar(&f.broker, "broker", "", "MQTT broker address (overrides config)")
	pf.StringVar(&f.mode, "mode", "", "device mode: Ai, Hc or None (overrides config)")
	pf.StringVar(&f.identity, "identity", "", "device identity matched in relay hashes (overrides config)")
	pf.StringVar(&f.httpAddr, "http", "", `HTTP status address, "off" disables (overrides config)`)
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(newRunCmd(f), newPrintStateCmd(f), newVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version reported by --version and the logs.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "io-manager %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.broker != "" {
		cfg.MQTT.Broker = f.broker
	}
	if f.mode != "" {
		cfg.Device.Mode = f.mode
	}
	if f.identity != "" {
		cfg.Device.Identity = f.identity
	}
	switch f.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
