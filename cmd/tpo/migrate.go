// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sayedAmaan-6104/tpo-react/internal/store"
)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// MigratorFactory opens a Migrator for a database URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command tree.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory, databaseURL)
}

func newMigrateCmd(factory MigratorFactory, urlGetter func() (string, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded schema migrations.`,
	}

	withMigrator := func(fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			url, err := urlGetter()
			if err != nil {
				return err
			}
			m, err := factory(url)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrln("warning: closing migrator:", closeErr)
				}
			}()
			return fn(cmd, m, args)
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	}

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration (--all for every migration)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			var err error
			if all {
				err = m.Down()
			} else {
				err = m.Steps(-1)
			}
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "down").With("all", all).Wrap(err)
			}
			cmd.Println("Rollback completed successfully")
			return nil
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "status").Wrap(err)
			}
			cmd.Print(formatStatus(st))
			return nil
		}),
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "force").With("version", v).Wrap(err)
			}
			cmd.Printf("Forced schema version %d\n", v)
			return nil
		}),
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

// parseForceVersion accepts a base-10 integer, surrounding whitespace allowed.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}

func formatStatus(st store.Status) string {
	var b strings.Builder
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	fmt.Fprintf(&b, "Current version: %d%s\n", st.Current, dirty)
	for _, m := range st.Applied {
		fmt.Fprintf(&b, "  [x] %s\n", m.Name)
	}
	for _, m := range st.Pending {
		fmt.Fprintf(&b, "  [ ] %s\n", m.Name)
	}
	return b.String()
}
