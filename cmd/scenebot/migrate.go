package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	coreconfig "github.com/m3rciful/scenebot/core/config"
)

func newMigrateCmd(d deps) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the session table migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := postgresConfig(cmd, d)
			if err != nil {
				return err
			}
			if err := d.migrateUp(cmd.Context(), cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive number, got %q", args[0])
				}
				steps = n
			}
			cfg, err := postgresConfig(cmd, d)
			if err != nil {
				return err
			}
			if err := d.migrateDown(cmd.Context(), cfg.Database, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s).\n", steps)
			return nil
		},
	}

	migrateCmd.AddCommand(up, down)
	return migrateCmd
}

func postgresConfig(cmd *cobra.Command, d deps) (*coreconfig.Config, error) {
	cfg, err := maintenanceConfig(cmd, d)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver != coreconfig.StoragePostgres {
		return nil, fmt.Errorf("migrations need storage.driver %q, configured %q", coreconfig.StoragePostgres, cfg.Storage.Driver)
	}
	return cfg, nil
}
