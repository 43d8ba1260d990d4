package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coordinatorsvc/coordinator/internal/infra/config"
	"github.com/coordinatorsvc/coordinator/internal/infra/persistence/postgres"
)

func newMigrateCmd(baseDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the coordinator_control schema",
		RunE: func(c *cobra.Command, _ []string) error {
			settings, err := config.LoadSettings(*baseDir)
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			db, err := openDB(settings)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.NewMigrator(db).Migrate(); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(c.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
