// Command io-manager drives the indicator LEDs, relays and cooling fan of
// a hub and bridges them to the MQTT command bus.
package main

import (
	"fmt"
	"os"

	"github.com/sweeney/io-manager/cmd/io-manager/commands"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "io-manager: %v\n", err)
		os.Exit(1)
	}
}
