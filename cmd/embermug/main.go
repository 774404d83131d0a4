package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "embermug",
	Short: "Ember smart mug client",
	Long: `Command-line client for the Ember smart mug:

- Discover a nearby mug by its advertised name
- Watch live state: drink temperature, battery, liquid state
- Set target temperature, display unit and LED color (writes are verified)
- Forget a stale pairing and rediscover from scratch

Writes require a mug previously enrolled through the vendor app; on
unenrolled devices the client connects read-only.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(forgetCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("sim", false, "Run against the built-in device simulator")
	rootCmd.PersistentFlags().String("name", "", "Override the advertised-name filter")
	rootCmd.PersistentFlags().String("config", "", "Settings file path")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
