package main

import (
	"encoding/json"
	"fmt"

	"github.com/cortexhq/cortex/internal"
	"github.com/spf13/cobra"
)

func NewSessionCmd(a *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Track session lifecycle",
	}

	startCmd := &cobra.Command{
		Use:   "start [session-id]",
		Short: "Record a session start",
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeSessionStartRunner(a),
	}

	endCmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "Record a session end",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSessionEndRunner(a),
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show session history and durations",
		RunE:  makeSessionStatsRunner(a),
	}

	sessionCmd.AddCommand(startCmd, endCmd, statsCmd)
	return sessionCmd
}

func makeSessionStartRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tracker, _, err := a.sessions()
		if err != nil {
			return err
		}

		sid := internal.NewSessionID()
		if len(args) > 0 {
			sid = args[0]
		}

		if err := tracker.Start(sid); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sid)
		return nil
	}
}

func makeSessionEndRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tracker, _, err := a.sessions()
		if err != nil {
			return err
		}

		if err := tracker.End(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended\n", args[0])
		return nil
	}
}

func makeSessionStatsRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		tracker, _, err := a.sessions()
		if err != nil {
			return err
		}

		stats, err := tracker.Stats()
		if err != nil {
			return fmt.Errorf("read sessions: %w", err)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return outputSessionStatsJSON(cmd, stats)
		}

		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
			return nil
		}

		for _, s := range stats {
			switch {
			case s.End == "":
				fmt.Fprintf(cmd.OutOrStdout(), "%s  started %s (open)\n", s.ID, s.Start)
			case s.Duration > 0:
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s -> %s (%s)\n", s.ID, s.Start, s.End, s.Duration)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s -> %s\n", s.ID, s.Start, s.End)
			}
		}
		return nil
	}
}

func outputSessionStatsJSON(cmd *cobra.Command, stats []internal.SessionStat) error {
	data := make([]map[string]any, 0, len(stats))
	for _, s := range stats {
		data = append(data, map[string]any{
			"sid":              s.ID,
			"start":            s.Start,
			"end":              s.End,
			"duration_seconds": int(s.Duration.Seconds()),
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
