package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/David-Botos/data-cleaner/pkg/connector"
	"github.com/David-Botos/data-cleaner/pkg/store"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect cleaning runs recorded in the report store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run and its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid run id %q", args[0])
			}
			return a.showRun(cmd.Context(), runID, cmd.OutOrStdout())
		},
	})
	return cmd
}

func (a *app) showRun(ctx context.Context, runID uuid.UUID, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.cfg.ReportStoreDriver == "" {
		return errors.WithHint(errors.New("report store is not configured"),
			"set REPORT_STORE_DRIVER and REPORT_STORE_DSN")
	}
	s, err := store.Open(ctx, a.cfg.ReportStoreDriver, a.cfg.ReportStoreDSN, a.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	actions, err := s.ListActions(ctx, runID)
	if err != nil {
		return err
	}

	pterm.Fprintln(w, pterm.Sprintf("Run:      %s", run.RunID))
	pterm.Fprintln(w, pterm.Sprintf("Source:   %s", run.Source))
	pterm.Fprintln(w, pterm.Sprintf("Status:   %s", run.Status))
	if run.FatalStage.Valid {
		pterm.Fprintln(w, pterm.Sprintf("Failed:   %s: %s", run.FatalStage.String, run.FatalReason.String))
	}
	pterm.Fprintln(w, pterm.Sprintf("Started:  %s", run.StartedAt))
	pterm.Fprintln(w, pterm.Sprintf("Finished: %s", run.FinishedAt))
	pterm.Fprintln(w, pterm.Sprintf("Actions:  %d (%d values affected)", run.ActionCount, run.Affected))

	if len(actions) == 0 {
		return nil
	}
	data := pterm.TableData{{"#", "Stage", "Column", "Count", "Description"}}
	for _, rec := range actions {
		data = append(data, []string{
			fmt.Sprintf("%d", rec.Seq),
			rec.Stage,
			rec.Column,
			fmt.Sprintf("%d", rec.Affected),
			rec.Action().String(),
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	pterm.Fprintln(w, out)
	return nil
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the Snowflake tables that can be passed to --source-table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sf, err := connector.NewConnectorFactory(a.cfg, a.logger).CreateSnowflakeConnector(ctx)
			if err != nil {
				return err
			}
			defer sf.Close()

			tables, err := sf.GetTables(ctx)
			if err != nil {
				return err
			}
			for _, t := range tables {
				pterm.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
