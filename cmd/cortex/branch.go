package main

import (
	"errors"
	"fmt"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func newSnapshotBranchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branch <id|latest> <name>",
		Short: "Create a branch and apply a snapshot onto it",
		Args:  cobra.ExactArgs(2),
		RunE:  makeSnapshotBranchRunner(a),
	}
}

func makeSnapshotBranchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		id, name := args[0], args[1]
		if err := store.Branch(cmd.Context(), id, name); err != nil {
			if errors.Is(err, internal.ErrApplyConflict) {
				// The branch survives; the user resolves conflicts there.
				fmt.Fprintf(cmd.ErrOrStderr(), "On branch %s with conflicts: %v\n", name, err)
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created branch %s from snapshot %s\n", name, id)
		return nil
	}
}
