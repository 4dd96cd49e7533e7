package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var builtinNames = map[string]bool{
	"init": true, "hook": true, "session": true, "snapshot": true,
	"context": true, "daemon": true, "watch": true, "repair": true,
	"help": true, "completion": true,
}

func isBuiltin(name string) bool {
	return builtinNames[name]
}

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cortex",
		Short:         "Durable local memory for CLI coding sessions",
		Long:          `Cortex gives a command-line AI coding assistant durable, cross-session memory of a project's recent work, derived from local git activity and captured working-tree snapshots.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	setHelpWithExternals(rootCmd)

	if a != nil {
		rootCmd.AddCommand(
			NewInitCmd(a),
			NewHookCmd(a),
			NewSessionCmd(a),
			NewSnapshotCmd(a),
			NewContextCmd(a),
			NewDaemonCmd(a),
			NewWatchCmd(a),
			NewRepairCmd(a),
		)
	}

	return rootCmd
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		printExternalCommands(c)
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (cortex-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}
