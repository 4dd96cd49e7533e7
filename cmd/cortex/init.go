package main

import (
	"fmt"
	"os"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the memory store for this project",
		Long:  `Create the .cortex directory and install the post-commit hook.`,
		RunE:  makeInitRunner(a),
	}

	cmd.Flags().Bool("no-hook", false, "Skip git hook installation")
	cmd.Flags().Bool("force", false, "Replace an existing unmanaged post-commit hook (backed up)")
	return cmd
}

func makeInitRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}

		ws, err := internal.ResolveWorkspace(cwd)
		if err != nil {
			return err
		}
		if err := ws.Init(); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized memory store at %s\n", ws.Dir)

		noHook, _ := cmd.Flags().GetBool("no-hook")
		if noHook {
			return nil
		}

		gitDir, err := internal.FindGitDir(ws.Root)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipping hook install: %v\n", err)
			return nil
		}

		force, _ := cmd.Flags().GetBool("force")
		if err := internal.InstallHook(gitDir, force); err != nil {
			return fmt.Errorf("install hook: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Installed post-commit hook")
		return nil
	}
}
