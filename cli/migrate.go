package cli

import (
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"school-server-go/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Manage the database schema",
	Long:      `Runs the embedded goose migrations against the configured database. Defaults to "up".`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if cfg.Store.Backend != "gorm" {
		return errors.NotSupportedf("migrations for store backend %q", cfg.Store.Backend)
	}

	gdb, err := db.OpenGorm(cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return errors.Trace(err)
	}
	defer sqlDB.Close()

	if err := db.Migrate(cmd.Context(), sqlDB, cfg.Database.Driver, command); err != nil {
		return err
	}
	cmd.Printf("migrate %s: done\n", command)
	return nil
}
