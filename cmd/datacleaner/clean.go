package main

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/connector"
	"github.com/David-Botos/data-cleaner/pkg/loader"
	"github.com/David-Botos/data-cleaner/pkg/model"
	"github.com/David-Botos/data-cleaner/pkg/pipeline"
	"github.com/David-Botos/data-cleaner/pkg/report"
	"github.com/David-Botos/data-cleaner/pkg/store"
)

type cleanOptions struct {
	source       sourceFlags
	configPath   string
	output       string
	sinkTable    string
	reportFormat string
	reportFile   string
	metrics      bool
}

func newCleanCmd(a *app) *cobra.Command {
	opts := &cleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Run the cleaning pipeline and report every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.clean(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	opts.source.register(cmd)
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "cleaning configuration (.yaml, .yml or .toml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the cleaned table to a CSV or XLSX file")
	cmd.Flags().StringVar(&opts.sinkTable, "sink-table", "", "write the cleaned table to this PostgreSQL table")
	cmd.Flags().StringVar(&opts.reportFormat, "report-format", "markdown", "report format: text, markdown or json")
	cmd.Flags().StringVar(&opts.reportFile, "report-file", "", "write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print per-stage metrics")
	return cmd
}

func (a *app) clean(ctx context.Context, opts *cleanOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.reportFormat {
	case "text", "markdown", "json":
	default:
		return errors.Newf("unknown report format %q", opts.reportFormat)
	}

	cleaningCfg := config.DefaultCleaningConfig()
	if opts.configPath != "" {
		var err error
		if cleaningCfg, err = config.LoadCleaningConfig(opts.configPath); err != nil {
			return err
		}
	}

	table, err := a.loadTable(ctx, &opts.source)
	if err != nil {
		return err
	}
	source := opts.source.name()
	a.logger.Info("Loaded input table",
		zap.String("source", source),
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()))

	spinner, _ := pterm.DefaultSpinner.WithWriter(os.Stderr).Start("Cleaning " + source + "...")
	orchestrator := pipeline.New(cleaningCfg, a.logger, pipeline.WithWorkers(a.cfg.WorkerPoolSize))
	result, runErr := orchestrator.Run(ctx, table)
	if runErr != nil {
		spinner.Fail("Cleaning failed in " + string(result.Report.Fatal.Stage))
	} else {
		spinner.Success("Cleaned " + source)
	}

	if err := a.saveReport(ctx, result.Report, source); err != nil {
		return err
	}
	if err := writeReport(opts, result.Report, source, stdout); err != nil {
		return err
	}
	if opts.metrics {
		pterm.Fprintln(os.Stderr, result.Metrics.GenerateMetricsReport())
	}
	if runErr != nil {
		// Output of a failed run is not authoritative and is never written
		return runErr
	}

	if opts.output != "" {
		if err := loader.WriteFile(opts.output, result.Table); err != nil {
			return err
		}
		pterm.Success.WithWriter(os.Stderr).Printfln("Wrote %d rows to %s", result.Table.NumRows(), opts.output)
	}
	if opts.sinkTable != "" {
		if err := a.writeSink(ctx, opts.sinkTable, result.Table); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(opts *cleanOptions, r *model.Report, source string, stdout io.Writer) (err error) {
	w := stdout
	if opts.reportFile != "" {
		f, err := os.Create(opts.reportFile)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", opts.reportFile)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	switch opts.reportFormat {
	case "json":
		return report.WriteJSON(w, r, source)
	case "text":
		return report.WriteText(w, r)
	default:
		_, err = io.WriteString(w, report.Markdown(r, source))
		return err
	}
}

func (a *app) saveReport(ctx context.Context, r *model.Report, source string) error {
	if a.cfg.ReportStoreDriver == "" {
		return nil
	}
	s, err := store.Open(ctx, a.cfg.ReportStoreDriver, a.cfg.ReportStoreDSN, a.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.SaveReport(ctx, r, source)
}

func (a *app) writeSink(ctx context.Context, table string, t *model.Table) error {
	pg, err := connector.NewConnectorFactory(a.cfg, a.logger).CreatePostgresConnector(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Validate(ctx); err != nil {
		return err
	}
	n, err := pg.WriteTable(ctx, table, t, 0)
	if err != nil {
		return err
	}
	pterm.Success.WithWriter(os.Stderr).Printfln("Inserted %d rows into %s.%s", n, a.cfg.Postgres.Schema, table)
	return nil
}
