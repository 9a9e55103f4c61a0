package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lymphgo/lymph/internal/breaker"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect and exercise a MultiCauseBreaker",
}

func init() {
	breakerCmd.AddCommand(breakerStatusCmd)
	breakerCmd.AddCommand(breakerSimulateCmd)
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the breaker's tunable thresholds",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("max errors before open:   %d\n", breaker.MaxErrorsBeforeOpen)
		fmt.Printf("cooldown seconds:         %d\n", breaker.CooldownSeconds)
		fmt.Printf("overprovisioning factor:  %d\n", breaker.OverprovisioningFactor)
		fmt.Printf("cleanup interval:         %s\n", breaker.CleanupInterval)
	},
}

var (
	simEndpoints string
	simMethod    string
	simFailures  int
	simTier      string
	simTrials    int
)

var breakerSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Register endpoints, apply synthetic failures, and run SelectEndpoint",
	Long: `simulate registers a method against a set of endpoints, concentrates a
number of synthetic failures on one tier (endpoint, method, or global), and
then calls SelectEndpoint repeatedly to show the resulting decisions and the
load-spread distribution across the surviving shortlist.`,
	RunE: runBreakerSimulate,
}

func init() {
	breakerSimulateCmd.Flags().StringVar(&simEndpoints, "endpoints", "A,B,C", "comma-separated endpoint identifiers")
	breakerSimulateCmd.Flags().StringVar(&simMethod, "method", "m", "method name to register and select")
	breakerSimulateCmd.Flags().IntVar(&simFailures, "failures", 0, "number of synthetic failures to apply before selecting")
	breakerSimulateCmd.Flags().StringVar(&simTier, "tier", "none", "where to concentrate failures: endpoint, method, global, or none")
	breakerSimulateCmd.Flags().IntVar(&simTrials, "trials", 10, "number of SelectEndpoint calls to run")
}

func runBreakerSimulate(cmd *cobra.Command, args []string) error {
	endpoints := strings.Split(simEndpoints, ",")
	b := breaker.New(breaker.Settings{})

	for _, e := range endpoints {
		b.Register(e, simMethod)
	}

	switch simTier {
	case "endpoint":
		for i := 0; i < simFailures; i++ {
			b.ObserveFailure(endpoints[0], simMethod)
		}
		logger.Info().Str("endpoint", endpoints[0]).Int("failures", simFailures).Msg("concentrated failures on one endpoint")
	case "method":
		for _, e := range endpoints {
			for i := 0; i < simFailures; i++ {
				b.ObserveFailure(e, simMethod)
			}
		}
		logger.Info().Str("method", simMethod).Int("failures", simFailures*len(endpoints)).Msg("concentrated failures across all endpoints of one method")
	case "global":
		for _, e := range endpoints {
			for i := 0; i < simFailures; i++ {
				b.ObserveFailure(e, simMethod)
			}
		}
		logger.Info().Int("failures", simFailures*len(endpoints)).Msg("spread failures to trip the global tier")
	case "none":
		if simFailures > 0 {
			return fmt.Errorf("--failures was set but --tier is %q; pick endpoint, method, or global", simTier)
		}
	default:
		return fmt.Errorf("unknown --tier %q", simTier)
	}

	counts := make(map[string]int)
	rejected := 0
	var lastErr error
	for i := 0; i < simTrials; i++ {
		e, err := b.SelectEndpoint(simMethod, nil)
		if err != nil {
			lastErr = err
			rejected++
			continue
		}
		counts[e]++
	}

	if len(counts) == 0 {
		fmt.Printf("all %d trials rejected: %v\n", simTrials, lastErr)
		return nil
	}

	fmt.Printf("selection distribution over %d trials:\n", simTrials)
	for _, e := range endpoints {
		if n, ok := counts[e]; ok {
			fmt.Printf("  %-10s %d\n", e, n)
		}
	}
	if rejected > 0 {
		fmt.Printf("(%d trials rejected: %v)\n", rejected, lastErr)
	}
	return nil
}
