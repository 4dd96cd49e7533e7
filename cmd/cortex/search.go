package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search snapshot metadata, diffs, and file lists",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSnapshotSearchRunner(a),
	}
}

func makeSnapshotSearchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, _, err := a.snapshots()
		if err != nil {
			return err
		}

		matches, err := store.Search(args[0])
		if err != nil {
			return fmt.Errorf("search snapshots: %w", err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			data := make([]map[string]any, 0, len(matches))
			for _, m := range matches {
				data = append(data, map[string]any{
					"id":      m.ID,
					"source":  m.Source,
					"summary": m.Summary,
					"context": m.Context,
				})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}

		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
			return nil
		}

		for _, m := range matches {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)  %s\n", m.ID, m.Source, m.Summary)
			for _, line := range m.Context {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", line)
			}
		}
		return nil
	}
}
