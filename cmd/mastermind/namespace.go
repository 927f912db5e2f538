package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Namespace commands
var namespaceCmd = &cobra.Command{
	Use:   "namespace",
	Short: "Manage storage namespaces",
}

var namespaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured namespaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		return show(cmd, "get_namespaces", nil)
	},
}

var namespaceSettingsCmd = &cobra.Command{
	Use:   "settings [NAME]",
	Short: "Show namespace settings, all of them or one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return show(cmd, "get_namespaces_settings", nil)
		}
		return show(cmd, "get_namespace_settings", args[0])
	},
}

var namespaceSetupCmd = &cobra.Command{
	Use:   "setup NAME",
	Short: "Create or update a namespace",
	Long: `Create the namespace NAME or replace its settings.

groups-count fixes the couple size of the namespace and a static
couple, when given, must have exactly that many groups.
success-copies-num picks the write acknowledgement policy (any,
quorum or all).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("groups-count")
		copies, _ := cmd.Flags().GetString("success-copies-num")
		static, _ := cmd.Flags().GetIntSlice("static-couple")

		settings := map[string]interface{}{
			"groups-count":       count,
			"success-copies-num": copies,
		}
		if len(static) > 0 {
			settings["static-couple"] = static
		}

		if _, err := call(cmd, "namespace_setup", []interface{}{args[0], settings}); err != nil {
			return err
		}
		fmt.Printf("✓ Namespace %s configured\n", args[0])
		return nil
	},
}

func init() {
	namespaceCmd.AddCommand(namespaceListCmd)
	namespaceCmd.AddCommand(namespaceSettingsCmd)
	namespaceCmd.AddCommand(namespaceSetupCmd)

	namespaceCmd.PersistentFlags().String("agent", "localhost:8080", "Agent address")

	namespaceSetupCmd.Flags().Int("groups-count", 0, "Couple size of the namespace")
	namespaceSetupCmd.Flags().String("success-copies-num", "all", "Write acknowledgement policy: any, quorum or all")
	namespaceSetupCmd.Flags().IntSlice("static-couple", nil, "Fixed couple serving the namespace")
	namespaceSetupCmd.MarkFlagRequired("groups-count")
}
