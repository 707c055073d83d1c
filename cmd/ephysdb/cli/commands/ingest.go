package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/mwantia/ephysdb/internal/ingest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const closeTimeout = 30 * time.Second

func NewIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [session...]",
		Short: "Ingest sessions into the metadata database",
		Long: `Ingest one or more sessions into the metadata database.

Sessions are given as folder names, folder paths or bare session ids. Without
arguments the JSON list configured as ingest.sessions_file is read. Sessions
with missing metadata are skipped; the run continues with the next session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				ids, err = ingest.LoadSessionList(cfg.Ingest.SessionsFile)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				logger.Warn("No sessions to ingest")
				return nil
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			st, err := openStore(ctx, cfg, logger, true)
			if err != nil {
				return err
			}
			defer st.Close()

			runner, err := ingest.NewRunner(cfg, logger, st)
			if err != nil {
				return err
			}

			summary := runner.Run(ctx, ids, ingest.Options{
				Overwrite:       cfg.Ingest.OverwriteExisting,
				RequireSettings: cfg.Ingest.RequireSettingsXML,
			})

			shutdown, cancelShutdown := context.WithTimeout(context.Background(), closeTimeout)
			defer cancelShutdown()

			if err := runner.Close(shutdown); err != nil {
				logger.Error("Failed to close runner: %v", err)
			}

			if len(summary.Failed) > 0 {
				failed := make([]string, 0, len(summary.Failed))
				for id := range summary.Failed {
					failed = append(failed, id)
				}
				sort.Strings(failed)
				return fmt.Errorf("%d of %d sessions failed: %v", len(failed), len(ids), failed)
			}

			return nil
		},
	}

	cmd.Flags().String("sessions-file", "", "JSON list of sessions to ingest when no arguments are given")
	cmd.Flags().Bool("overwrite", true, "merge into existing records instead of failing on conflicts")
	cmd.Flags().Bool("require-settings", true, "skip sessions without settings.xml")

	viper.BindPFlag("ingest.sessions_file", cmd.Flags().Lookup("sessions-file"))
	viper.BindPFlag("ingest.overwrite_existing", cmd.Flags().Lookup("overwrite"))
	viper.BindPFlag("ingest.require_settings_xml", cmd.Flags().Lookup("require-settings"))

	return cmd
}
