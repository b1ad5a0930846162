// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back and inspect schema migrations. The database is read from DATABASE_URL.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd.OutOrStdout(), m, "Migrations applied")
			})
		},
	})

	downCmd := &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default 1), or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			n := 1
			if len(args) == 1 {
				parsed, err := parsePositive(args[0])
				if err != nil {
					return err
				}
				n = parsed
			}
			return withMigrator(deps, func(m Migrator) error {
				var err error
				if all {
					err = m.Down()
				} else {
					err = m.Steps(-n)
				}
				if err != nil {
					return err
				}
				return printVersion(cmd.OutOrStdout(), m, "Rolled back")
			})
		},
	}
	downCmd.Flags().Bool("all", false, "roll back every migration")
	cmd.AddCommand(downCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("output")
			return withMigrator(deps, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				if format != "text" {
					return writeStructured(cmd.OutOrStdout(), format, status)
				}
				return printStatus(cmd.OutOrStdout(), status)
			})
		},
	}
	statusCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(deps, func(m Migrator) error {
				return printVersion(cmd.OutOrStdout(), m, "Schema")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Errorf("version must be an integer")
			}
			return withMigrator(deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				return printVersion(cmd.OutOrStdout(), m, "Forced")
			})
		},
	})

	return cmd
}

func withMigrator(deps *MigrateDeps, fn func(Migrator) error) (err error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Secrets.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "DATABASE_URL").Errorf("DATABASE_URL environment variable is required")
	}

	m, err := deps.factory()(cfg.Secrets.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func parsePositive(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, oops.Code("INVALID_STEPS").With("steps", arg).Errorf("step count must be a positive integer")
	}
	return n, nil
}

func printVersion(w io.Writer, m Migrator, prefix string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	name, err := store.MigrationName(version)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s: version %d", prefix, version)
	if name != "" {
		line += " (" + name + ")"
	}
	if dirty {
		line += " [dirty]"
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

func printStatus(w io.Writer, status *store.Status) error {
	state := "up to date"
	switch {
	case status.Dirty:
		state = "dirty; fix the failed migration and run 'tollgate migrate force'"
	case len(status.Pending) > 0:
		state = fmt.Sprintf("%d pending", len(status.Pending))
	}
	if _, err := fmt.Fprintf(w, "Current version: %d (latest %d), %s\n", status.Current, status.Latest, state); err != nil {
		return err
	}
	for _, v := range status.Applied {
		if err := printMigration(w, "applied", v); err != nil {
			return err
		}
	}
	for _, v := range status.Pending {
		if err := printMigration(w, "pending", v); err != nil {
			return err
		}
	}
	return nil
}

func printMigration(w io.Writer, state string, version uint) error {
	name, err := store.MigrationName(version)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "  %-8s %s\n", state, name)
	return err
}
