package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newSnapshotShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id|latest]",
		Short: "Show snapshot metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeSnapshotShowRunner(a),
	}
}

func makeSnapshotShowRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		target := "latest"
		if len(args) > 0 {
			target = args[0]
		}

		id, meta, err := store.Show(target)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"id": id, "meta": meta})
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot:  %s\n", id)
		fmt.Fprintf(cmd.OutOrStdout(), "Captured:  %s\n", meta.Timestamp)
		if meta.SessionID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Session:   %s\n", meta.SessionID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Files:     %d\n", meta.UncommittedFiles)
		fmt.Fprintf(cmd.OutOrStdout(), "Summary:   %s\n", meta.Summary)
		return nil
	}
}

func newSnapshotDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [id|latest]",
		Short: "Print the snapshot's raw diff",
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeSnapshotDiffRunner(a),
	}
}

func makeSnapshotDiffRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		target := "latest"
		if len(args) > 0 {
			target = args[0]
		}

		rc, err := store.Diff(target)
		if err != nil {
			return err
		}
		defer rc.Close()

		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	}
}
