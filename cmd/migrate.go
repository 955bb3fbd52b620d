package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundhaven/feedsync/internal/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Migrate the feedsync database schema to the current model versions.

This opens the configured database, creates it if missing, and applies
any pending schema changes. Safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}

	db, err := database.InitializeWithMigrations()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer db.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Database schema up to date at %s\n", appConfig.Database.Path)
	return nil
}
