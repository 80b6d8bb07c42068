package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"userrepo/internal/config"
	"userrepo/internal/database"
	"userrepo/internal/logger"
)

// deps are the process boundaries a command touches; tests replace them.
type deps struct {
	loadConfig func() (*config.AppConfig, error)
	openDB     func(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error)
}

func defaultDeps() deps {
	return deps{loadConfig: config.Load, openDB: database.Open}
}

func newRootCmd(d deps) *cobra.Command {
	serve := newServeCmd(d)

	root := &cobra.Command{
		Use:   "userrepo",
		Short: "Users repository service",
		Long: `userrepo stores users behind a repository layer backed by memory or PostgreSQL.

Without a subcommand it serves the health and metrics endpoints, like "serve".
Configuration is read from the environment and an optional .env file.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE:              serve.RunE,
	}

	root.AddCommand(
		serve,
		newDemoCmd(d),
		newMigrateCmd(d),
		// colon forms kept for existing deploy scripts
		hidden(newMigrateStatusCmd(d), "migrate:status", "migration:status"),
		hidden(newMigrateListCmd(), "migrate:list", "migration:list"),
	)
	return root
}

func hidden(cmd *cobra.Command, use string, aliases ...string) *cobra.Command {
	cmd.Use = use
	cmd.Aliases = aliases
	cmd.Hidden = true
	return cmd
}

// setup loads the configuration and builds a logger writing to the
// command's output.
func setup(cmd *cobra.Command, d deps) (*config.AppConfig, *slog.Logger, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log, cmd.OutOrStdout(), cfg.Location()), nil
}
