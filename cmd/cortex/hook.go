package main

import (
	"fmt"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func NewHookCmd(a *app) *cobra.Command {
	hookCmd := &cobra.Command{
		Use:   "hook",
		Short: "Git hook management",
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the post-commit hook",
		RunE:  makeHookInstallRunner(a),
	}
	installCmd.Flags().Bool("force", false, "Replace an existing unmanaged hook (backed up)")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the post-commit hook",
		RunE:  makeHookUninstallRunner(a),
	}

	runCmd := &cobra.Command{
		Use:    "run [hook-type]",
		Short:  "Execute a hook handler (called from the git shim)",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE:   makeHookRunRunner(a),
	}

	hookCmd.AddCommand(installCmd, uninstallCmd, runCmd)
	return hookCmd
}

func makeHookInstallRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ws, err := a.workspace()
		if err != nil {
			return err
		}

		gitDir, err := internal.FindGitDir(ws.Root)
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if err := internal.InstallHook(gitDir, force); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Installed post-commit hook")
		return nil
	}
}

func makeHookUninstallRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ws, err := a.workspace()
		if err != nil {
			return err
		}

		gitDir, err := internal.FindGitDir(ws.Root)
		if err != nil {
			return err
		}

		if err := internal.UninstallHook(gitDir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Removed post-commit hook")
		return nil
	}
}

func makeHookRunRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if args[0] != "post-commit" {
			return fmt.Errorf("unsupported hook type: %s", args[0])
		}

		// A broken hook must never block a commit: report and exit zero.
		ws, err := a.workspace()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cortex hook: %v\n", err)
			return nil
		}

		record, err := internal.RecordCommit(cmd.Context(), ws)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cortex hook: %v\n", err)
			return nil
		}

		hash := record.Hash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded commit %s\n", hash)
		return nil
	}
}
