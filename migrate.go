package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"site-registry/internal/database"
)

var downSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrateUp(cmd.Context(), cfg.DatabaseURL)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			changed, err := m.Down(downSteps)
			if err != nil {
				return err
			}
			logger.Info("migrations rolled back", zap.Int("steps", downSteps), zap.Bool("changed", changed))
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *database.Migrator) error {
			version, dirty, ok, err := m.Version()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func migrateUp(ctx context.Context, dsn string) error {
	m, err := database.NewMigrator(ctx, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	changed, err := m.Up()
	if err != nil {
		return err
	}
	if changed {
		logger.Info("migrations applied")
	} else {
		logger.Info("schema up to date")
	}
	return nil
}

func withMigrator(cmd *cobra.Command, fn func(m *database.Migrator) error) error {
	m, err := database.NewMigrator(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
