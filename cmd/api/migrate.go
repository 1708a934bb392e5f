package main

import (
	"github.com/spf13/cobra"

	"github.com/jwalitptl/jobboard-api/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema when absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := postgres.NewDB(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		l.Info().Str("database", cfg.Database.Name).Msg("schema up to date")
		return nil
	},
}
