package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Group commands
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Inspect and manage storage groups",
}

// listings maps the state argument of "group list" to the coordinator
// request serving it.
var listings = map[string]string{
	"all":       "get_groups",
	"symmetric": "get_symmetric_groups",
	"bad":       "get_bad_groups",
	"frozen":    "get_frozen_groups",
	"closed":    "get_closed_groups",
	"empty":     "get_empty_groups",
}

var groupListCmd = &cobra.Command{
	Use:   "list [all|symmetric|bad|frozen|closed|empty]",
	Short: "List groups, optionally filtered by state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state := "all"
		if len(args) > 0 {
			state = args[0]
		}
		name, ok := listings[state]
		if !ok {
			return fmt.Errorf("unknown state %q", state)
		}
		return show(cmd, name, nil)
	},
}

var groupInfoCmd = &cobra.Command{
	Use:   "info GROUP",
	Short: "Show one group with its nodes and couple",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		return show(cmd, "get_group_info", id)
	},
}

var groupHistoryCmd = &cobra.Command{
	Use:   "history GROUP",
	Short: "Show the recorded node-set history of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		return show(cmd, "get_group_history", id)
	},
}

var groupDetachCmd = &cobra.Command{
	Use:   "detach GROUP ADDR",
	Short: "Detach a node from a group in the recorded history",
	Long: `Detach a node from a group in the recorded history.

Detaching writes a manual history record without the named node. The
next automatic snapshot re-records whatever the fleet actually
reports, so detach is for nodes that are gone for good.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		if _, err := call(cmd, "group_detach_node", []interface{}{id, args[1]}); err != nil {
			return err
		}
		fmt.Printf("✓ Detached node %s from group %d\n", args[1], id)
		return nil
	},
}

var groupByDCCmd = &cobra.Command{
	Use:   "by-dc [GROUP...]",
	Short: "Show groups keyed by datacenter",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return show(cmd, "groups_by_dc", nil)
		}
		ids := make([]int, 0, len(args))
		for _, arg := range args {
			id, err := parseGroup(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return show(cmd, "groups_by_dc", []interface{}{ids})
	},
}

func init() {
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupInfoCmd)
	groupCmd.AddCommand(groupHistoryCmd)
	groupCmd.AddCommand(groupDetachCmd)
	groupCmd.AddCommand(groupByDCCmd)

	groupCmd.PersistentFlags().String("agent", "localhost:8080", "Agent address")
}
