package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/config"
	"github.com/cloo-solutions/reportqa/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres vector store schema",
		Long:  "Apply or roll back migrations for the postgres store backend (REPORTQA_STORE_BACKEND=postgres)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, database.MigrateUp)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all stored collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, database.MigrateDown)
		},
	})
	cmd.PersistentFlags().String("source", "", "Migrations source URL (overrides REPORTQA_MIGRATIONS_PATH)")

	return cmd
}

func runMigrate(cmd *cobra.Command, migrate func(databaseURL, source string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.UsePostgres() {
		return fmt.Errorf("migrations apply to the postgres store backend only (REPORTQA_STORE_BACKEND=%s)", cfg.StoreBackend)
	}

	source := cfg.MigrationsPath
	if v, _ := cmd.Flags().GetString("source"); v != "" {
		source = v
	}
	return migrate(cfg.DatabaseURL, source)
}
