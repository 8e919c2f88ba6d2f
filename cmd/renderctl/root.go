package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverAddr string
	logDebug   bool

	// per-run id woven into log prefixes, set during PersistentPreRun
	instance string
)

// rootCmd is the base command for renderctl.
var rootCmd = &cobra.Command{
	Use:   "renderctl",
	Short: "Probe and drive a remote rendering server over its dealer channel",
	Long: `Renderctl is the operator-facing probe for the renderlink client stack.
It can connect to a rendering server as an exporter and push sample
traffic, hold a heartbeat connection open to keep the server alive, or
exercise the full client state machine against an in-process loopback
peer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		instance = uuid.NewString()[:8]
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "tcp://127.0.0.1:5555", "rendering server endpoint")
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "enable verbose logging")
}
