package main

import (
	"context"
	"io/fs"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/connector"
	"github.com/David-Botos/data-cleaner/pkg/loader"
	"github.com/David-Botos/data-cleaner/pkg/logging"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// app carries the state shared by every command
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	envFile   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "datacleaner",
		Short: "Profile and clean tabular data",
		Long: `datacleaner runs a fixed-order cleaning pipeline over a CSV, Excel or
Snowflake table and reports every change it makes.

Stages: profiling, imputation, deduplication, schema normalization, type
coercion, outlier handling, text normalization, fuzzy deduplication,
nullity pruning, date parsing and scaling.

Examples:
  datacleaner profile --input customers.csv
  datacleaner clean --input customers.csv --config cleaning.yaml --output clean.csv
  datacleaner clean --source-table CUSTOMERS --sink-table customers --report-format json
  datacleaner report show 6f1c2f0e-3d5a-4b8e-9a47-1f7d2c9e8b10
  datacleaner tables`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "file of environment variables to load if present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override LOG_FORMAT (json|console)")

	root.AddCommand(newCleanCmd(a), newProfileCmd(a), newReportCmd(a), newTablesCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "failed to load %s", a.envFile)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(strings.ToLower(cfg.LogLevel), strings.ToLower(cfg.LogFormat))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// sourceFlags selects where the input table comes from
type sourceFlags struct {
	input       string
	sheet       string
	nullMarkers []string
	table       string
	query       string
	batchSize   int
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.input, "input", "i", "", "CSV or XLSX file to read")
	cmd.Flags().StringVar(&s.sheet, "sheet", "", "worksheet of an XLSX input (default: first sheet)")
	cmd.Flags().StringSliceVar(&s.nullMarkers, "null-markers", loader.DefaultNullMarkers, "cell texts read as missing")
	cmd.Flags().StringVar(&s.table, "source-table", "", "Snowflake table to read from the configured schema")
	cmd.Flags().StringVar(&s.query, "source-query", "", "Snowflake query whose result is read")
	cmd.Flags().IntVar(&s.batchSize, "source-batch-size", 10000, "rows fetched per Snowflake page")
	cmd.MarkFlagsMutuallyExclusive("input", "source-table", "source-query")
	cmd.MarkFlagsOneRequired("input", "source-table", "source-query")
}

// name identifies the source in reports
func (s *sourceFlags) name() string {
	switch {
	case s.input != "":
		return s.input
	case s.table != "":
		return "snowflake:" + s.table
	default:
		return "snowflake:query"
	}
}

func (a *app) loadTable(ctx context.Context, s *sourceFlags) (*model.Table, error) {
	if s.input != "" {
		return loader.ReadFile(s.input, loader.Options{NullMarkers: s.nullMarkers, Sheet: s.sheet})
	}

	sf, err := connector.NewConnectorFactory(a.cfg, a.logger).CreateSnowflakeConnector(ctx)
	if err != nil {
		return nil, err
	}
	defer sf.Close()

	if err := sf.Validate(ctx); err != nil {
		return nil, err
	}
	if s.table != "" {
		return sf.ReadTable(ctx, s.table, s.batchSize)
	}
	return sf.QueryTable(ctx, s.query, s.batchSize)
}
