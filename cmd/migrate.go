/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/mindsight/journal/internal/db"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if err := db.Rollback(conn); err != nil {
			return err
		}
		logger.Info().Msg("migrations rolled back")
		return nil
	},
}

// initDBCmd clears existing data and recreates the schema.
var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Clear existing data and create new tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadRuntime()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if err := db.InitSchema(conn); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Initialized the database.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, initDBCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}
