package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renderbridge/go-renderlink/protocol"
)

// renderctlVersion is set at build time via -ldflags "-X main.renderctlVersion=x.y.z"
var renderctlVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show renderctl and wire protocol versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "renderctl version %s\n", renderctlVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "wire protocol: %d\n", protocol.ProtocolVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
