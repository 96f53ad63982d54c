package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/m3rciful/scenebot/bot"
	"github.com/m3rciful/scenebot/core/bootstrap"
	corecmd "github.com/m3rciful/scenebot/core/cmd"
	coreconfig "github.com/m3rciful/scenebot/core/config"
	coredatabase "github.com/m3rciful/scenebot/core/database"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

// deps are the side-effecting entry points; tests swap them for fakes.
type deps struct {
	runBot      func(ctx context.Context, opts corecmd.Options) error
	loadConfig  func(path string) (*coreconfig.Config, error)
	openStore   func(ctx context.Context, cfg *coreconfig.Config) (*bootstrap.Result, error)
	migrateUp   func(ctx context.Context, cfg coredatabase.Config) error
	migrateDown func(ctx context.Context, cfg coredatabase.Config, steps int) error
}

func defaultDeps() deps {
	return deps{
		runBot:     corecmd.Run,
		loadConfig: coreconfig.LoadOptional,
		openStore: func(ctx context.Context, cfg *coreconfig.Config) (*bootstrap.Result, error) {
			return bootstrap.OpenStore(ctx, bootstrap.Options{Config: cfg, SkipMigrations: true})
		},
		migrateUp:   coredatabase.RunMigrations,
		migrateDown: coredatabase.RollbackMigrations,
	}
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "scenebot",
		Short:         "Telegram bot walking users through step-by-step dialogues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to the YAML config (defaults to $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		newRunCmd(d),
		newMigrateCmd(d),
		newSessionsCmd(d),
		newVersionCmd(),
	)
	return root
}

func runOptions(cmd *cobra.Command) corecmd.Options {
	path, _ := cmd.Flags().GetString("config")
	return corecmd.Options{
		ConfigPath:        path,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig:        bot.LoadConfig,
		Bootstrap:         bot.Bootstrap,
	}
}

// maintenanceConfig loads the config without requiring a bot token.
func maintenanceConfig(cmd *cobra.Command, d deps) (*coreconfig.Config, error) {
	path, err := corecmd.ResolveConfigPath(runOptions(cmd))
	if err != nil {
		return nil, err
	}
	return d.loadConfig(path)
}

func newRunCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return d.runBot(cmd.Context(), runOptions(cmd))
		},
	}
}
