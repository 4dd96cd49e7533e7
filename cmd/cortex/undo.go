package main

import (
	"fmt"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func newSnapshotUndoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Delete the latest snapshot and repoint to the previous one",
		RunE:  makeSnapshotUndoRunner(a),
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func makeSnapshotUndoRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		latest, ok := store.Latest()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "No snapshots to undo.")
			return nil
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(cmd, fmt.Sprintf("Delete snapshot %s?", latest)) {
			return internal.ErrNotConfirmed
		}

		removed, newLatest, err := store.Undo()
		if err != nil {
			return err
		}

		if newLatest == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s; no snapshots remain\n", removed)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s; latest is now %s\n", removed, newLatest)
		return nil
	}
}

func newSnapshotClearCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete snapshots older than a retention window",
		RunE:  makeSnapshotClearRunner(a),
	}

	cmd.Flags().Int("older-than", 7, "Delete snapshots older than this many days")
	return cmd
}

func makeSnapshotClearRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		days, _ := cmd.Flags().GetInt("older-than")
		stats, err := store.Clear(days)
		if err != nil {
			return fmt.Errorf("clear snapshots: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d snapshots older than %dd\n", stats.SnapshotsRemoved, days)
		return nil
	}
}
