// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package main

import (
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/playergate/playergate/internal/config"
	"github.com/playergate/playergate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its actions.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, and inspect schema migrations against the PostgreSQL database.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *store.Migrator) error {
					if err := m.Up(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
					}
					cmd.Println("Migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *store.Migrator) error {
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
					}
					cmd.Println("Migrations rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations (negative rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return oops.Code("CONFIG_INVALID").Errorf("steps argument must be an integer, got %q", args[0])
				}
				return withMigrator(cmd, func(m *store.Migrator) error {
					if err := m.Steps(n); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "steps").With("n", n).Wrap(err)
					}
					cmd.Printf("Applied %d migration step(s)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *store.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
					}
					if version == 0 {
						cmd.Println("No migrations applied")
						return nil
					}
					name, nameErr := store.MigrationName(version)
					if nameErr != nil || name == "" {
						name = "unknown"
					}
					cmd.Printf("Version: %d (%s), dirty: %t\n", version, name, dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the migration version without running migrations",
			Long: `Set the schema version record directly. Only for recovering from a
failed migration that left the schema dirty; the schema itself is not
touched.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return oops.Code("CONFIG_INVALID").Errorf("version argument must be an integer, got %q", args[0])
				}
				return withMigrator(cmd, func(m *store.Migrator) error {
					if err := m.Force(v); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "force").With("version", v).Wrap(err)
					}
					cmd.Printf("Forced version to %d\n", v)
					return nil
				})
			},
		},
	)

	return cmd
}

// withMigrator loads config, opens a migrator, runs fn, and closes it.
func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set DATABASE_URL)")
	}

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return fn(migrator)
}
