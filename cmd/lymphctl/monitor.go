package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/lymphgo/lymph/internal/liveness"
)

// noopMessage is the Message this command feeds to the monitor: never idle
// chatter, since watch's whole point is showing the state machine respond to
// presence and silence of real traffic.
type noopMessage struct{}

func (noopMessage) IsIdleChatter() bool { return false }

// fakeTransport answers every ping immediately and records disconnects; it
// stands in for the real RPC transport §6 treats as an external collaborator.
type fakeTransport struct{}

func (fakeTransport) Ping(ctx context.Context, endpoint string) error { return nil }
func (fakeTransport) Disconnect(endpoint string) {
	fmt.Printf("transport: disconnect requested for %s\n", endpoint)
}

var (
	watchDuration time.Duration
	watchEndpoint string
	watchSilent   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Drive a liveness.Monitor against an in-memory fake transport",
}

func init() {
	monitorCmd.AddCommand(monitorWatchCmd)
}

var monitorWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a Monitor for a duration, printing its status on each tick",
	Long: `watch creates a liveness.Monitor over a fake transport whose pings always
succeed, feeds it synthetic traffic (unless --silent), and prints Stats() once
per status-loop tick until --duration elapses or the monitor closes itself.`,
	RunE: runMonitorWatch,
}

func init() {
	monitorWatchCmd.Flags().DurationVar(&watchDuration, "duration", 10*time.Second, "how long to run the demo")
	monitorWatchCmd.Flags().StringVar(&watchEndpoint, "endpoint", "peer-1", "demo endpoint identity")
	monitorWatchCmd.Flags().BoolVar(&watchSilent, "silent", false, "never deliver traffic; with no frame ever received the monitor stays unknown")
}

func runMonitorWatch(cmd *cobra.Command, args []string) error {
	thresholds := liveness.Thresholds{
		HeartbeatInterval:      500 * time.Millisecond,
		Timeout:                2 * time.Second,
		IdleTimeout:            3 * time.Second,
		UnresponsiveDisconnect: 4 * time.Second,
		IdleDisconnect:         5 * time.Second,
	}

	m := liveness.New(watchEndpoint, fakeTransport{}, liveness.Settings{Thresholds: thresholds})
	defer m.Close()

	stop := time.After(watchDuration)
	traffic := time.NewTicker(700 * time.Millisecond)
	defer traffic.Stop()
	report := time.NewTicker(thresholds.Timeout)
	defer report.Stop()

	for {
		select {
		case <-stop:
			fmt.Printf("done: final status=%v\n", m.Status())
			return nil
		case <-traffic.C:
			if watchSilent {
				continue
			}
			if rand.Intn(10) == 0 {
				continue // occasionally drop a beat, just like real traffic
			}
			m.OnRecv(noopMessage{})
		case <-report.C:
			snap := m.Stats()
			fmt.Printf("status=%-12v phi=%7.3f sent=%d received=%d\n",
				snap.Status, snap.Phi, snap.Sent, snap.Received)
			if snap.Status == liveness.StatusClosed {
				return nil
			}
		}
	}
}
