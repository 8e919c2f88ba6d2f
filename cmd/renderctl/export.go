package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderbridge/go-renderlink/client"
	"github.com/renderbridge/go-renderlink/config"
	"github.com/renderbridge/go-renderlink/message"
)

var (
	exportCount int
	exportFlush bool
	exportStop  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Connect as an exporter and send sample render traffic",
	RunE: func(cmd *cobra.Command, args []string) error {
		cl, err := client.New(&client.Options{
			Config: &config.Config{
				Address:   serverAddr,
				LogPrefix: fmt.Sprintf("Exporter-%s", instance),
				LogDebug:  logDebug,
			},
		})
		if err != nil {
			return err
		}
		defer cl.Close()

		cl.SetFlushOnExit(exportFlush)
		cl.SetCallback(func(payload []byte, _ *client.Client) {
			m, err := message.Decode(payload)
			if err != nil {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "received message txseq=%d\n", m.Txseq)
		})

		cl.Connect(serverAddr)

		for i := 0; i < exportCount; i++ {
			err := cl.SendMessage(&message.Message{
				Txseq:  uint64(i + 1),
				Txtime: time.Now().UTC().UnixMilli(),
				PluginUpdate: &message.PluginUpdate{
					Plugin:    "probe",
					Attribute: "frame",
					Value:     i,
				},
			})
			if err != nil {
				return err
			}
		}

		if !cl.WaitForMessages(10 * time.Second) {
			return fmt.Errorf("timed out with %d messages outstanding", cl.OutstandingMessages())
		}
		if !cl.Good() {
			return fmt.Errorf("client terminated while exporting")
		}

		if exportStop {
			cl.StopServer()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d messages to %s\n", exportCount, serverAddr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntVar(&exportCount, "count", 10, "number of sample messages to send")
	exportCmd.Flags().BoolVar(&exportFlush, "flush", false, "flush outstanding messages on exit")
	exportCmd.Flags().BoolVar(&exportStop, "stop-server", false, "ask the server to terminate after exporting")
}
