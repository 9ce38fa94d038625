package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/repository"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateStep("up", "Apply all pending migrations", repository.Migrate),
		migrateStep("down", "Revert the most recent migration", repository.Rollback),
		migrateStep("status", "Show applied migrations", repository.MigrationStatus),
	)
	return cmd
}

func migrateStep(use, short string, run func(*sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer telemetry.Shutdown(context.Background())

			if cfg.Database.URL == "" {
				return errors.New("database.url is required")
			}
			db, err := openDB(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			return run(db)
		},
	}
}
