package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/regioflow/internal/infrastructure/database/postgres"
)

// NewMigrateCommand builds the `migrate` subcommand managing the database
// schema.
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return postgres.NewMigrator(cliCtx.Config.Database, cliCtx.Logger).Up()
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return postgres.NewMigrator(cliCtx.Config.Database, cliCtx.Logger).Down()
		},
	}

	cmd.AddCommand(up, down)
	return cmd
}
