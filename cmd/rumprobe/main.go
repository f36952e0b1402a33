// Command rumprobe drives the RUM client library against a running site: it
// replays synthetic performance entries through the vitals monitor, buffers
// the resulting records and ships them to the ingestion endpoint.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rumprobe",
		Short: "Synthetic RUM probe for the finsite backend",
		Long: `rumprobe exercises the RUM pipeline end to end.

Quick start:
  rumprobe send --endpoint http://localhost:8080/api/rum --views 5
  rumprobe token --secret change-me --subject dashboard`,
		SilenceUsage: true,
	}

	cmd.AddCommand(sendCommand())
	cmd.AddCommand(tokenCommand())

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
