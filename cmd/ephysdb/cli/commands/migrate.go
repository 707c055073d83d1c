package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/mwantia/ephysdb/pkg/db/migrations"
	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the metadata database schema",
	}

	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateDownCommand())
	cmd.AddCommand(newMigrateStatusCommand())

	return cmd
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("Metadata store is up to date")
			return nil
		},
	}
}

func newMigrateDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer st.Close()

			migrator := migrations.NewMigrator(st.DB())
			for i := 0; i < steps; i++ {
				if err := migrator.Rollback(ctx); err != nil {
					return err
				}
			}

			logger.Info("Rolled back %d migration(s)", steps)
			return nil
		},
	}

	cmd.Flags().Int("steps", 1, "number of migrations to roll back")

	return cmd
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer st.Close()

			statuses, err := migrations.NewMigrator(st.DB()).Status(ctx)
			if err != nil {
				return err
			}

			return printMigrationStatus(cmd, statuses)
		},
	}
}

func printMigrationStatus(cmd *cobra.Command, statuses []migrations.MigrationStatus) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
	for _, status := range statuses {
		fmt.Fprintf(w, "%d\t%t\t%s\n", status.Version, status.Applied, status.Description)
	}
	return w.Flush()
}
