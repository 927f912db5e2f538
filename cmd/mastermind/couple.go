package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/mastermind/pkg/topology"
)

// Couple commands
var coupleCmd = &cobra.Command{
	Use:   "couple",
	Short: "Inspect and manage replica couples",
}

var coupleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List couples keyed by namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return show(cmd, "couples_by_namespace", nil)
	},
}

var coupleInfoCmd = &cobra.Command{
	Use:   "info GROUP",
	Short: "Show the couple a group belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		return show(cmd, "get_couple_info", id)
	},
}

var coupleWeightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show write weights of open couples, keyed by namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return show(cmd, "get_group_weights", nil)
	},
}

var coupleCreateCmd = &cobra.Command{
	Use:   "create SIZE",
	Short: "Compose and write a new couple from uncoupled groups",
	Long: `Compose a new couple of SIZE uncoupled groups spread across
datacenters and write its metadata into the member groups.

Mandatory groups are forced into the couple; the rest is picked from
the emptiest datacenters.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid couple size %q", args[0])
		}
		mandatory, _ := cmd.Flags().GetIntSlice("mandatory")
		ns, _ := cmd.Flags().GetString("namespace")

		out, err := call(cmd, "couple_groups", []interface{}{size, mandatory, ns})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var coupleBreakCmd = &cobra.Command{
	Use:   "break COUPLE CONFIRMATION",
	Short: "Break a couple and remove its members' metadata",
	Long: `Break the couple COUPLE (given as its "1:2:3" key) and remove the
couple metadata from every member group.

The confirmation string must spell out the couple and its state, for
example "Yes, I want to break good couple 1:2:3" for a working couple
and "Yes, I want to break bad couple 1:2:3" for a broken one.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseCouple(args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		if _, err := call(cmd, "break_couple", []interface{}{ids, args[1], force}); err != nil {
			return err
		}
		fmt.Printf("✓ Broke couple %s\n", topology.CoupleKey(ids))
		return nil
	},
}

var coupleRepairCmd = &cobra.Command{
	Use:   "repair GROUP",
	Short: "Rewrite lost couple metadata starting from one group",
	Long: `Repair the couple of GROUP by rewriting the couple metadata into
members whose copy is lost or wrong.

When no member holds a namespace anymore, --namespace supplies it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGroup(args[0])
		if err != nil {
			return err
		}
		ns, _ := cmd.Flags().GetString("namespace")

		out, err := call(cmd, "repair_groups", []interface{}{id, ns})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var coupleFreezeCmd = &cobra.Command{
	Use:   "freeze COUPLE",
	Short: "Freeze a couple, taking it out of the write weights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseCouple(args[0])
		if err != nil {
			return err
		}
		key := topology.CoupleKey(ids)
		if _, err := call(cmd, "freeze_couple", key); err != nil {
			return err
		}
		fmt.Printf("✓ Froze couple %s\n", key)
		return nil
	},
}

var coupleUnfreezeCmd = &cobra.Command{
	Use:   "unfreeze COUPLE",
	Short: "Unfreeze a couple, returning it to the write weights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseCouple(args[0])
		if err != nil {
			return err
		}
		key := topology.CoupleKey(ids)
		if _, err := call(cmd, "unfreeze_couple", key); err != nil {
			return err
		}
		fmt.Printf("✓ Unfroze couple %s\n", key)
		return nil
	},
}

func init() {
	coupleCmd.AddCommand(coupleListCmd)
	coupleCmd.AddCommand(coupleInfoCmd)
	coupleCmd.AddCommand(coupleWeightsCmd)
	coupleCmd.AddCommand(coupleCreateCmd)
	coupleCmd.AddCommand(coupleBreakCmd)
	coupleCmd.AddCommand(coupleRepairCmd)
	coupleCmd.AddCommand(coupleFreezeCmd)
	coupleCmd.AddCommand(coupleUnfreezeCmd)

	coupleCmd.PersistentFlags().String("agent", "localhost:8080", "Agent address")

	coupleCreateCmd.Flags().IntSlice("mandatory", nil, "Group ids that must be part of the couple")
	coupleCreateCmd.Flags().String("namespace", "", "Namespace of the new couple")
	coupleBreakCmd.Flags().Bool("force", false, "Skip the couple state check in the confirmation wording")
	coupleRepairCmd.Flags().String("namespace", "", "Namespace to restore when no member remembers one")
}
