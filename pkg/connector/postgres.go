// pkg/connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// maxBindParams is the PostgreSQL limit on parameters per statement
const maxBindParams = 65535

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL.
// It is the sink cleaned tables are written to.
type PostgresConnector struct {
	db        *sqlx.DB
	logger    *zap.Logger
	cfg       *config.PostgresConfig
	converter *converter.TypeConverter
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresConnector, error) {
	logger = namedLogger(logger, "postgres-connector")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize PostgreSQL connection")
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}

	// Set statement timeout if configured
	if cfg.StatementTimeout > 0 {
		_, err = db.ExecContext(ctx,
			fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeout.Milliseconds()))
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	c := newPostgresConnector(db, cfg, logger)
	LogConnectionStats(logger, cfg.Database, db)
	return c, nil
}

func newPostgresConnector(db *sqlx.DB, cfg *config.PostgresConfig, logger *zap.Logger) *PostgresConnector {
	return &PostgresConnector{
		db:        db,
		logger:    logger,
		cfg:       cfg,
		converter: converter.NewTypeConverter(logger),
	}
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// Validate verifies the PostgreSQL connection and ensures the sink schema exists
func (c *PostgresConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return errors.Wrap(err, "failed to query PostgreSQL version")
	}
	c.logger.Info("Connected to PostgreSQL", zap.String("version", version))

	if err := c.ensureSchema(ctx, c.cfg.Schema); err != nil {
		return errors.Wrapf(err, "failed to create/verify schema %s", c.cfg.Schema)
	}

	c.logger.Info("PostgreSQL connection validated",
		zap.String("database", c.cfg.Database),
		zap.String("schema", c.cfg.Schema))
	return nil
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// ensureSchema creates a schema if it doesn't exist
func (c *PostgresConnector) ensureSchema(ctx context.Context, schema string) error {
	_, err := c.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+converter.QuoteIdentifier(schema))
	return err
}

// ExecWithTimeout executes a query with a timeout
func (c *PostgresConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// QueryWithTimeout executes a query with a timeout. The timeout covers the
// whole iteration, so the caller must finish with the rows before it elapses.
func (c *PostgresConnector) QueryWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (*sqlx.Rows, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	rows, err := c.db.QueryxContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	go func() {
		<-queryCtx.Done()
		cancel()
	}()
	return rows, nil
}

// BatchInsert performs a bulk insert into a table
func (c *PostgresConnector) BatchInsert(
	ctx context.Context,
	schema string,
	table string,
	columns []string,
	valueRows [][]interface{},
	batchSize int,
) (int64, error) {
	if len(valueRows) == 0 || len(columns) == 0 {
		return 0, nil
	}

	if batchSize <= 0 {
		batchSize = 1000
	}
	if batchSize*len(columns) > maxBindParams {
		batchSize = maxBindParams / len(columns)
	}

	fullTableName := converter.QuoteIdentifier(schema) + "." + converter.QuoteIdentifier(table)
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = converter.QuoteIdentifier(col)
	}
	columnStr := strings.Join(quoted, ", ")

	var totalRowsInserted int64

	for i := 0; i < len(valueRows); i += batchSize {
		end := i + batchSize
		if end > len(valueRows) {
			end = len(valueRows)
		}

		currentBatch := valueRows[i:end]

		placeholders := make([]string, len(currentBatch))
		args := make([]interface{}, 0, len(currentBatch)*len(columns))

		for j, row := range currentBatch {
			if len(row) != len(columns) {
				return totalRowsInserted, errors.Newf("row %d has %d values, expected %d", i+j, len(row), len(columns))
			}
			rowPlaceholders := make([]string, len(columns))
			for k, val := range row {
				rowPlaceholders[k] = fmt.Sprintf("$%d", j*len(columns)+k+1)
				args = append(args, val)
			}
			placeholders[j] = fmt.Sprintf("(%s)", strings.Join(rowPlaceholders, ", "))
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			fullTableName, columnStr, strings.Join(placeholders, ", "))

		result, err := c.ExecWithTimeout(ctx, query, 30*time.Second, args...)
		if err != nil {
			return totalRowsInserted, errors.Wrap(err, "batch insert failed")
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			c.logger.Warn("Couldn't get rows affected", zap.Error(err))
		} else {
			totalRowsInserted += rowsAffected
		}
	}

	return totalRowsInserted, nil
}

// CreateTableIfNotExists creates a table with the specified schema if it doesn't exist
func (c *PostgresConnector) CreateTableIfNotExists(
	ctx context.Context,
	schema string,
	table string,
	columnDefs []string,
	primaryKey string,
) error {
	fullTableName := converter.QuoteIdentifier(schema) + "." + converter.QuoteIdentifier(table)

	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`
	if err := c.db.QueryRowContext(ctx, query, schema, table).Scan(&exists); err != nil {
		return errors.Wrap(err, "failed to check if table exists")
	}

	if exists {
		c.logger.Debug("Table already exists", zap.String("table", fullTableName))
		return nil
	}

	createSQL := fmt.Sprintf(
		"CREATE TABLE %s (\n\t%s",
		fullTableName,
		strings.Join(columnDefs, ",\n\t"),
	)
	if primaryKey != "" {
		createSQL += fmt.Sprintf(",\n\tPRIMARY KEY (%s)", converter.QuoteIdentifier(primaryKey))
	}
	createSQL += "\n)"

	if _, err := c.ExecWithTimeout(ctx, createSQL, 30*time.Second); err != nil {
		return errors.Wrapf(err, "failed to create table %s", fullTableName)
	}

	c.logger.Info("Created table", zap.String("table", fullTableName))
	return nil
}

// WriteTable creates the sink table from the cleaned column types and inserts
// every row. Missing cells are written as NULL.
func (c *PostgresConnector) WriteTable(ctx context.Context, table string, t *model.Table, batchSize int) (int64, error) {
	meta := c.converter.MetadataFor(c.cfg.Schema, table, t)
	if err := c.CreateTableIfNotExists(ctx, meta.Schema, meta.Table, c.converter.GenerateColumnDefinitions(meta), ""); err != nil {
		return 0, err
	}

	rows := make([][]interface{}, t.NumRows())
	for i := range rows {
		cells := t.Row(i)
		row := make([]interface{}, len(cells))
		for j, v := range cells {
			row[j] = c.converter.ToSQLValue(v)
		}
		rows[i] = row
	}

	inserted, err := c.BatchInsert(ctx, meta.Schema, meta.Table, t.Names(), rows, batchSize)
	if err != nil {
		return inserted, errors.Wrapf(err, "failed to write %s", meta.QualifiedName())
	}

	c.logger.Info("Wrote cleaned table",
		zap.String("table", meta.QualifiedName()),
		zap.Int64("rows", inserted))
	return inserted, nil
}
