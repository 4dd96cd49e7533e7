package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDaemonCmd(a *app) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Background maintenance daemon",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the maintenance daemon",
		RunE:  makeDaemonStartRunner(a),
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the maintenance daemon",
		RunE:  makeDaemonStopRunner(a),
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report daemon status",
		RunE:  makeDaemonStatusRunner(a),
	}

	runCmd := &cobra.Command{
		Use:    "run",
		Short:  "Run the daemon worker loop in the foreground",
		Hidden: true,
		RunE:   makeDaemonRunRunner(a),
	}

	daemonCmd.AddCommand(startCmd, stopCmd, statusCmd, runCmd)
	return daemonCmd
}

func makeDaemonStartRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d, err := a.daemon()
		if err != nil {
			return err
		}

		pid, err := d.Start(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid %d)\n", pid)
		return nil
	}
}

func makeDaemonStopRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d, err := a.daemon()
		if err != nil {
			return err
		}

		if err := d.Stop(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
		return nil
	}
}

func makeDaemonStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d, err := a.daemon()
		if err != nil {
			return err
		}

		pid, alive := d.Status()
		switch {
		case alive:
			fmt.Fprintf(cmd.OutOrStdout(), "Running (pid %d)\n", pid)
		case pid != 0:
			fmt.Fprintf(cmd.OutOrStdout(), "Not running (stale pid %d)\n", pid)
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "Not running")
		}
		return nil
	}
}

func makeDaemonRunRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d, err := a.daemon()
		if err != nil {
			return err
		}

		// Interrupt and terminate are handled by the worker's cleanup
		// guard, which removes the PID file before the process exits.
		return d.Run(cmd.Context())
	}
}
