package main

import (
	"fmt"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func NewRepairCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Rewrite the event logs dropping unparseable lines",
		RunE:  makeRepairRunner(a),
	}
}

func makeRepairRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ws, err := a.workspace()
		if err != nil {
			return err
		}

		for _, log := range []struct{ name, path string }{
			{"commits", ws.CommitsLog()},
			{"sessions", ws.SessionsLog()},
		} {
			removed, err := internal.RepairLog(log.path)
			if err != nil {
				return fmt.Errorf("repair %s log: %w", log.name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: removed %d corrupt lines\n", log.name, removed)
		}
		return nil
	}
}
