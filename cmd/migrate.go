package cmd

import (
	"fmt"

	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/log"
	"github.com/spf13/cobra"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the last migration instead")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if migrateDown {
		err = database.Rollback(db)
	} else {
		err = database.Migrate(db)
	}
	if err != nil {
		return err
	}

	version, dirty, err := database.MigrationVersion(db)
	if err != nil {
		return err
	}
	log.Infof("database at version %d (dirty: %t)", version, dirty)
	return nil
}
