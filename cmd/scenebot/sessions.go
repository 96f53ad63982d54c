package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/scenebot/bot"
	"github.com/m3rciful/scenebot/core/bootstrap"
	"github.com/m3rciful/scenebot/core/dialogue"
)

func newSessionsCmd(d deps) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean up stored dialogue sessions",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List stored sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: withStore(d, func(cmd *cobra.Command, _ []string, infra *bootstrap.Result) error {
			infos, err := bot.ListSessions(cmd.Context(), infra.Store)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No active sessions found.")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s\tstep=%d\tanswers=%d\tupdated=%s\n",
					info.Key, info.Step, info.Answers, info.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return nil
		}),
	}

	inspect := &cobra.Command{
		Use:   "inspect <scene:chat:user>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(d, func(cmd *cobra.Command, args []string, infra *bootstrap.Result) error {
			key, err := dialogue.ParseKey(args[0])
			if err != nil {
				return err
			}
			s, err := infra.Store.Load(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("load %s: %w", key, err)
			}
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}),
	}

	rm := &cobra.Command{
		Use:   "rm <scene:chat:user>...",
		Short: "Remove one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(d, func(cmd *cobra.Command, args []string, infra *bootstrap.Result) error {
			var failed int
			for _, raw := range args {
				key, err := dialogue.ParseKey(raw)
				if err == nil {
					err = infra.Store.Delete(cmd.Context(), key)
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing %q: %v\n", raw, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session %q\n", raw)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sessions not removed", failed, len(args))
			}
			return nil
		}),
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove sessions idle for longer than --older-than",
		Args:  cobra.NoArgs,
		RunE: withStore(d, func(cmd *cobra.Command, _ []string, infra *bootstrap.Result) error {
			age, _ := cmd.Flags().GetDuration("older-than")
			if age <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			n, err := bot.PurgeSessions(cmd.Context(), infra.Store, time.Now().Add(-age))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d session(s).\n", n)
			return nil
		}),
	}
	purge.Flags().Duration("older-than", 24*time.Hour, "Idle age after which a session is removed")

	sessionsCmd.AddCommand(ls, inspect, rm, purge)
	return sessionsCmd
}

// withStore opens the configured store for the duration of one command.
func withStore(d deps, fn func(cmd *cobra.Command, args []string, infra *bootstrap.Result) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := maintenanceConfig(cmd, d)
		if err != nil {
			return err
		}
		infra, err := d.openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = infra.Close() }()
		return fn(cmd, args, infra)
	}
}
