// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/paeltech/yee-sub000/internal/config"
	"github.com/paeltech/yee-sub000/internal/logging"
	"github.com/paeltech/yee-sub000/internal/xdg"
)

// rootOptions are shared by every subcommand.
type rootOptions struct {
	configFile string
	deps       *cliDeps
}

// NewRootCmd creates the root command for the yee CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(deps *cliDeps) *cobra.Command {
	opts := &rootOptions{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "yee",
		Short: "yee - youth group administration",
		Long: `yee runs the youth group admin API and manages its accounts.

Server commands (serve, migrate, seed) talk to PostgreSQL directly. Client
commands (login, logout, whoami, user, profile, group) act as a signed-in
user whose session token is kept in a local file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/yee/config.yaml)")
	cmd.PersistentFlags().String("database.url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	cmd.PersistentFlags().String("log.format", "json", "log format (json or text)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newWhoamiCmd(opts))
	cmd.AddCommand(newPasswdCmd(opts))
	cmd.AddCommand(newUserCmd(opts))
	cmd.AddCommand(newProfileCmd(opts))
	cmd.AddCommand(newGroupCmd(opts))

	return cmd
}

// load reads and validates configuration for cmd and installs the logger.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	defaultFile, err := xdg.ConfigFile()
	if err != nil {
		slog.Debug("no default config location", "error", err)
		defaultFile = ""
	}

	cfg, err := config.Load(config.LoadOptions{
		File:        o.configFile,
		DefaultFile: defaultFile,
		Flags:       cmd.Flags(),
		Getenv:      o.deps.Getenv,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.Setup("yee", version, cfg.Log.Format, o.deps.LogOutput)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
