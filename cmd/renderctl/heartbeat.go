package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderbridge/go-renderlink/client"
	"github.com/renderbridge/go-renderlink/config"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Hold a liveness probe connection open until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := client.New(&client.Options{
			Config: &config.Config{
				Address:   serverAddr,
				LogPrefix: fmt.Sprintf("Heartbeat-%s", instance),
				LogDebug:  logDebug,
			},
			Heartbeat: true,
		})
		if err != nil {
			return err
		}
		defer cl.Close()

		cl.Connect(serverAddr)

		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-sigch:
				fmt.Fprintln(cmd.OutOrStdout(), "interrupted, closing heartbeat")
				return nil
			case <-ticker.C:
				if !cl.Good() {
					return fmt.Errorf("server connection lost")
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(heartbeatCmd)
}
