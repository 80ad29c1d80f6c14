// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply or roll back the user and banned token schema. The database is
read from the DATABASE_URL environment variable. Running migrate with no
subcommand applies every pending migration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag. Use this to
recover after a migration failed part way through.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "force").With("version", version).Wrap(err)
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	return &out
}

func runMigrateUp(cmd *cobra.Command, deps *MigrateDeps) error {
	return withMigrator(deps, func(m Migrator) error {
		pending, err := m.PendingMigrations()
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
		}
		if len(pending) == 0 {
			cmd.Println("Schema is up to date")
			return nil
		}

		cmd.Printf("Applying %d migration(s)...\n", len(pending))
		if err := m.Up(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
	}
	if version == 0 {
		cmd.Println("No migrations applied")
		return nil
	}

	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		name = "unknown"
	}
	line := fmt.Sprintf("Version %d (%s)", version, name)
	if dirty {
		line += " dirty; run 'migrate force' after fixing the schema"
	}
	cmd.Println(line)
	return nil
}

// withMigrator opens a migrator against DATABASE_URL, runs fn and closes it.
func withMigrator(deps *MigrateDeps, fn func(Migrator) error) (err error) {
	databaseURL, err := getDatabaseURL(deps.Getenv)
	if err != nil {
		return err
	}

	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = oops.Code("MIGRATION_FAILED").With("operation", "close").Wrap(closeErr)
		}
	}()

	return fn(m)
}

func getDatabaseURL(getenv func(string) string) (string, error) {
	databaseURL := getenv(config.EnvDatabaseURL)
	if databaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("%s environment variable is required", config.EnvDatabaseURL)
	}
	return databaseURL, nil
}

// parseForceVersion reads a leading integer, ignoring anything after it.
func parseForceVersion(arg string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(arg), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("value", arg).Wrap(err)
	}
	return version, nil
}
