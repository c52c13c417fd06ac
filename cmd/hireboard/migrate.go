package main

import (
	"github.com/spf13/cobra"

	"github.com/moverq1337/hireboard/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		conn, err := db.Connect(cfg.DBURL, log)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}

		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
