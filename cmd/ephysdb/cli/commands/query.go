package commands

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/mwantia/ephysdb/pkg/db/models"
	"github.com/mwantia/ephysdb/pkg/db/store"
	"github.com/spf13/cobra"
)

func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect ingested sessions",
	}

	cmd.AddCommand(newQuerySessionsCommand())
	cmd.AddCommand(newQueryProbesCommand())
	cmd.AddCommand(newQueryUnitsCommand())

	return cmd
}

func newQuerySessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List ingested sessions and their recordings",
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

			if err := requireSchema(ctx, st); err != nil {
				return err
			}

			sessions, err := st.ListSessions(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tDATE\tSTART\tRIG\tHOSTNAME\tSETTINGS_XML_MD5")
			for _, session := range sessions {
				recording, err := st.GetRecordingBySession(ctx, session.LimsID)
				if errors.Is(err, store.ErrNotFound) {
					fmt.Fprintf(w, "%d\t-\t-\t-\t-\t-\n", session.LimsID)
					continue
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", session.LimsID,
					time.Time(recording.Date).Format(time.DateOnly), recording.StartTime.String(),
					orDash(recording.Rig), recording.Hostname, recording.SettingsXMLMD5)
			}
			return w.Flush()
		},
	}
}

func newQueryProbesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probes <session-id>",
		Short: "List the probe recordings of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id '%s': %w", args[0], err)
			}

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

			if err := requireSchema(ctx, st); err != nil {
				return err
			}

			probes, err := st.ListSessionProbes(ctx, sessionID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROBE\tSERIAL\tVERSION\tUNITS\tMETRICS_CSV_MD5")
			for _, probe := range probes {
				version := "-"
				if probe.NeuropixelsVersion != nil {
					version = string(*probe.NeuropixelsVersion)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", probe.ProbeLetter, probe.ProbeSerialNumber,
					version, probe.Units, orDash(probe.MetricsCSVMD5))
			}
			return w.Flush()
		},
	}
}

func newQueryUnitsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units <session-id>",
		Short: "List the sorted units of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id '%s': %w", args[0], err)
			}

			var letter models.ProbeLetter
			if flag, _ := cmd.Flags().GetString("probe"); flag != "" {
				if letter, err = models.ParseProbeLetter(flag); err != nil {
					return err
				}
			}

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

			if err := requireSchema(ctx, st); err != nil {
				return err
			}

			probes, err := st.ListSessionProbes(ctx, sessionID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROBE\tCLUSTER\tPEAK_CHANNEL\tQUALITY\tFIRING_RATE\tPRESENCE_RATIO\tISI_VIOL\tSNR")
			for _, probe := range probes {
				if letter != "" && probe.ProbeLetter != letter {
					continue
				}

				units, err := st.ListSortedUnits(ctx, probe.SettingsXMLMD5, probe.ProbeSerialNumber)
				if err != nil {
					return err
				}
				for _, unit := range units {
					peak := "-"
					if unit.PeakChannel != nil {
						peak = strconv.FormatInt(*unit.PeakChannel, 10)
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n", probe.ProbeLetter, unit.ClusterID, peak,
						orDash(unit.Quality), formatFloat(unit.FiringRate), formatFloat(unit.PresenceRatio),
						formatFloat(unit.ISIViolations), formatFloat(unit.SNR))
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("probe", "", "only list units of this probe letter (A-F)")

	return cmd
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'g', 4, 64)
}
