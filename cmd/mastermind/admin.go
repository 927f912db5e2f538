package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var nextGroupNumberCmd = &cobra.Command{
	Use:   "next-group-number COUNT",
	Short: "Reserve the next COUNT unused group numbers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
		return show(cmd, "get_next_group_number", n)
	},
}

var forceUpdateCmd = &cobra.Command{
	Use:   "force-update",
	Short: "Trigger an immediate topology reload on the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := call(cmd, "force_nodes_update", nil)
		if err != nil {
			return err
		}
		if scheduled, ok := out.(bool); ok && scheduled {
			fmt.Println("✓ Nodes update scheduled")
			return nil
		}
		return fmt.Errorf("agent did not schedule the update")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the running configuration of the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return show(cmd, "get_config", nil)
	},
}

func init() {
	nextGroupNumberCmd.Flags().String("agent", "localhost:8080", "Agent address")
	forceUpdateCmd.Flags().String("agent", "localhost:8080", "Agent address")
	configCmd.Flags().String("agent", "localhost:8080", "Agent address")
}
