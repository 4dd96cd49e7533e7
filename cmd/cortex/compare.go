package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id-a> <id-b>",
		Short: "Show how uncommitted work drifted between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE:  makeSnapshotCompareRunner(a),
	}
}

func makeSnapshotCompareRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		out, err := store.Compare(args[0], args[1])
		if err != nil {
			return err
		}

		if out == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Snapshots are identical.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}
}
