package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mastermind",
	Short: "Mastermind - metadata coordinator for elliptics storage fleets",
	Long: `Mastermind tracks every host, node, group and couple of an elliptics
storage fleet, composes replica couples across datacenters, hands out
write weights and keeps couple metadata consistent.

The agent command runs the coordinator itself. Every other command is
an operator console that talks to a running agent over gRPC.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Mastermind version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(coupleCmd)
	rootCmd.AddCommand(namespaceCmd)
	rootCmd.AddCommand(nextGroupNumberCmd)
	rootCmd.AddCommand(forceUpdateCmd)
	rootCmd.AddCommand(configCmd)
}
