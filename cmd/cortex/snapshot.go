package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func NewSnapshotCmd(a *app) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snap"},
		Short:   "Capture and manage uncommitted work snapshots",
	}

	snapshotCmd.AddCommand(
		newSnapshotCaptureCmd(a),
		newSnapshotListCmd(a),
		newSnapshotShowCmd(a),
		newSnapshotDiffCmd(a),
		newSnapshotRestoreCmd(a),
		newSnapshotBranchCmd(a),
		newSnapshotSearchCmd(a),
		newSnapshotCompareCmd(a),
		newSnapshotUndoCmd(a),
		newSnapshotClearCmd(a),
	)
	return snapshotCmd
}

func newSnapshotCaptureCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the current uncommitted changes",
		RunE:  makeSnapshotCaptureRunner(a),
	}

	cmd.Flags().String("id", "", "Explicit snapshot id")
	cmd.Flags().String("session", "", "Session id to record in the snapshot metadata")
	return cmd
}

func makeSnapshotCaptureRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		id, _ := cmd.Flags().GetString("id")
		session, _ := cmd.Flags().GetString("session")

		result, err := store.Capture(cmd.Context(), id, session)
		if err != nil {
			return fmt.Errorf("capture snapshot: %w", err)
		}

		if result.NoChanges {
			fmt.Fprintln(cmd.OutOrStdout(), "Working tree clean, nothing to capture.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Captured %s (%d files): %s\n",
			result.ID, result.FileCount, result.Summary)
		return nil
	}
}

func newSnapshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List captured snapshots",
		RunE:    makeSnapshotListRunner(a),
	}
}

func makeSnapshotListRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		summaries, err := store.List()
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return outputSnapshotsJSON(cmd, summaries)
		}

		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No snapshots.")
			return nil
		}

		latest, _ := store.Latest()
		for _, s := range summaries {
			marker := " "
			if s.ID == latest {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  %d files  %s\n",
				marker, s.ID, snapshotAge(s.Timestamp), s.FileCount, s.Summary)
		}
		return nil
	}
}

func snapshotAge(stamp string) string {
	t, err := time.Parse(internal.TimeLayout, stamp)
	if err != nil {
		return stamp
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func outputSnapshotsJSON(cmd *cobra.Command, summaries []internal.SnapshotSummary) error {
	data := make([]map[string]any, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, map[string]any{
			"id":        s.ID,
			"timestamp": s.Timestamp,
			"files":     s.FileCount,
			"summary":   s.Summary,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
