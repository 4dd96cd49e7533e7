package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Synthesize the session context document",
		Long:  `Merge the commit log, session log, snapshots, notes, and enrichments into SESSION_CONTEXT.md.`,
		RunE:  makeContextRunner(a),
	}

	cmd.Flags().Bool("stdout", false, "Print the document instead of writing it")
	return cmd
}

func makeContextRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		synth, ws, err := a.synthesizer()
		if err != nil {
			return err
		}

		toStdout, _ := cmd.Flags().GetBool("stdout")
		if toStdout {
			fmt.Fprint(cmd.OutOrStdout(), synth.Synthesize(cmd.Context()))
			return nil
		}

		if err := synth.Publish(cmd.Context()); err != nil {
			return fmt.Errorf("publish context: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", ws.ContextPath())
		return nil
	}
}
