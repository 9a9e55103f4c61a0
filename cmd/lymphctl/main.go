// Command lymphctl is a thin demonstration harness over the breaker and
// liveness packages. It is not the RPC container: spec.md and SPEC_FULL.md
// both treat the surrounding CLI, wire protocol, and service discovery as
// external collaborators. lymphctl exists only to exercise breaker.SelectEndpoint
// and liveness.Monitor against an in-memory fake transport so the two core
// packages have a runnable demo surface.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lymphctl",
	Short: "Demo harness for the breaker and liveness packages",
	Long: `lymphctl exercises the multi-cause circuit breaker and connection
liveness monitor against in-memory fakes. It does not dispatch real RPCs and
does not implement the surrounding message broker or service discovery.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.AddCommand(breakerCmd)
	rootCmd.AddCommand(monitorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
