// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sayedAmaan-6104/tpo-react/internal/config"
	"github.com/sayedAmaan-6104/tpo-react/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the tpo CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tpo",
		Short: "TPO portal - placement office identity service",
		Long: `tpo runs the identity service behind the training and placement
office portal: student and recruiter accounts, sessions, password reset
and email verification.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/tpo/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewTokensCmd())

	return cmd
}

// loadConfig loads the configuration from the --config file, falling back
// to the XDG default location.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := xdg.ResolveConfigFile(configFile)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return config.Load(path, nil)
	}
	return config.Load(path, cmd.Flags())
}

// databaseURL loads just enough configuration to reach the database.
func databaseURL() (string, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return cfg.DatabaseURL, nil
}
