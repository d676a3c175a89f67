package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/io-manager/internal/button"
	"github.com/sweeney/io-manager/internal/config"
	"github.com/sweeney/io-manager/internal/gpio"
)

var (
	green = color.New(color.FgGreen, color.Bold)
	faint = color.New(color.Faint)
	red   = color.New(color.FgRed)
)

func newPrintStateCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the current level of every configured line and exit",
		Long: `print-state reads the button, LED, relay and fan lines once and prints
their levels. Lines are claimed as inputs, so run it while the daemon is
stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			chip, err := gpio.OpenChip(cfg.GPIO.Chip)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer chip.Close()
			return printState(cmd.OutOrStdout(), cfg, chip)
		},
	}
}

// printState reads each line once. Outputs are active-low.
func printState(w io.Writer, cfg *config.Config, src pinSource) error {
	v, err := readLine(src.Pin(cfg.GPIO.Button))
	if err != nil {
		return fmt.Errorf("button: %w", err)
	}
	fmt.Fprintf(w, "%-8s %3d  ", "button", cfg.GPIO.Button)
	if v == button.LevelPressed {
		green.Fprintln(w, "PRESSED")
	} else {
		faint.Fprintln(w, "RELEASED")
	}

	groups := []struct {
		name    string
		offsets []int
	}{
		{"led", cfg.GPIO.LEDs},
		{"relay", cfg.GPIO.Relays},
		{"fan", cfg.GPIO.Fans},
	}
	for _, g := range groups {
		for i, offset := range g.offsets {
			label := fmt.Sprintf("%s %d", g.name, i)
			fmt.Fprintf(w, "%-8s %3d  ", label, offset)
			v, err := readLine(src.Pin(offset))
			switch {
			case err != nil:
				red.Fprintf(w, "ERROR %v\n", err)
			case v == gpio.Low:
				green.Fprintln(w, "ON")
			default:
				faint.Fprintln(w, "OFF")
			}
		}
	}
	return nil
}

func readLine(p gpio.Pin) (int, error) {
	defer p.Close()
	if err := gpio.Setup(p, gpio.In, 0); err != nil {
		return 0, err
	}
	return p.Read()
}
