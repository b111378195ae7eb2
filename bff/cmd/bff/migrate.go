package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/avika-ai/avika-bff/bff/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the session audit schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd, "up", migrations.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd, "down", migrations.Down)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required for migrations")
		}
		version, dirty, err := migrations.Version(cfg.Database.DSN)
		if err != nil {
			return err
		}
		printSchemaVersion(cmd.OutOrStdout(), version, dirty)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func runMigration(cmd *cobra.Command, direction string, step func(dsn string) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required for migrations")
	}
	printInfo(cmd.OutOrStdout(), "migrating %s", direction)
	if err := step(cfg.Database.DSN); err != nil {
		return err
	}
	logger.Info("database migration complete", "direction", direction)
	printSuccess(cmd.OutOrStdout(), "migrations %s complete", direction)
	return nil
}
