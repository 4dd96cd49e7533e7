package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func newSnapshotRestoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore [id|latest]",
		Short: "Apply a snapshot's diff to the working tree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeSnapshotRestoreRunner(a),
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func makeSnapshotRestoreRunner(a *app) func(*cobra.Command, []string) error {
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

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(cmd, fmt.Sprintf("Apply snapshot %s (%d files) to the working tree?", id, meta.UncommittedFiles)) {
			return internal.ErrNotConfirmed
		}

		restored, err := store.Restore(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", restored)
		return nil
	}
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
