// pkg/connector/snowflake.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake.
// It is the source raw tables are read from.
type SnowflakeConnector struct {
	db        *sqlx.DB
	logger    *zap.Logger
	cfg       *config.SnowflakeConfig
	converter *converter.TypeConverter
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig, logger *zap.Logger) (*SnowflakeConnector, error) {
	logger = namedLogger(logger, "snowflake-connector")

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Snowflake connection")
	}

	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if cfg.QueryTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("ALTER SESSION SET STATEMENT_TIMEOUT_IN_SECONDS = %d",
				int(cfg.QueryTimeout.Seconds())),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to Snowflake")
	}

	c := newSnowflakeConnector(db, cfg, logger)
	LogConnectionStats(logger, cfg.Database, db)
	return c, nil
}

func newSnowflakeConnector(db *sqlx.DB, cfg *config.SnowflakeConfig, logger *zap.Logger) *SnowflakeConnector {
	return &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
		converter: converter.NewTypeConverterWithConfig(logger, converter.TypeConverterConfig{
			DefaultTimezone: "UTC",
		}),
	}
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sqlx.DB {
	return c.db
}

// Validate verifies the Snowflake connection and that the source schema exists
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse sql.NullString
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return errors.Wrap(err, "failed to verify Snowflake access")
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role.String),
		zap.String("database", database.String),
		zap.String("warehouse", warehouse.String))

	if c.cfg.Database != "" && !strings.EqualFold(database.String, c.cfg.Database) {
		return errors.Newf("connected to wrong database: %s (expected: %s)",
			database.String, c.cfg.Database)
	}

	found, err := c.hasSchema(ctx, c.cfg.Schema)
	if err != nil {
		return errors.Wrap(err, "failed to verify schema")
	}
	if !found {
		return errors.Newf("schema %s not found in database %s", c.cfg.Schema, database.String)
	}
	return nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// hasSchema checks the information schema for a schema name
func (c *SnowflakeConnector) hasSchema(ctx context.Context, schema string) (bool, error) {
	var count int
	err := c.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?",
		strings.ToUpper(schema))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetTables retrieves all base tables in the configured schema
func (c *SnowflakeConnector) GetTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := c.db.SelectContext(ctx, &tables,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
		strings.ToUpper(c.cfg.Schema))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve tables from schema %s", c.cfg.Schema)
	}
	return tables, nil
}

// QueryWithTimeout executes a query with a timeout. The timeout covers the
// whole iteration, so the caller must finish with the rows before it elapses.
func (c *SnowflakeConnector) QueryWithTimeout(
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

// ExecWithTimeout executes a statement with a timeout
func (c *SnowflakeConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	timeout time.Duration,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// BatchQuery fetches data in batches to handle large result sets. query must
// impose a stable order for the pages to be disjoint.
func (c *SnowflakeConnector) BatchQuery(
	ctx context.Context,
	query string,
	batchSize int,
	processor func(*sqlx.Rows) error,
) error {
	if batchSize <= 0 {
		batchSize = 10000
	}

	offset := 0
	for {
		batchQuery := fmt.Sprintf("%s LIMIT %d OFFSET %d", query, batchSize, offset)
		rows, err := c.QueryWithTimeout(ctx, batchQuery, 5*time.Minute)
		if err != nil {
			return errors.Wrapf(err, "batch query failed at offset %d", offset)
		}

		rowCount := 0
		for rows.Next() {
			rowCount++
			if err := processor(rows); err != nil {
				rows.Close()
				return errors.Wrapf(err, "row processing failed at offset %d", offset)
			}
		}

		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrapf(err, "error iterating rows at offset %d", offset)
		}

		if rowCount < batchSize {
			break
		}
		offset += batchSize
	}

	return nil
}

// QueryTable materializes the result of query into a Table. SQL NULL becomes a
// missing cell and column types are taken from the declared database types.
func (c *SnowflakeConnector) QueryTable(ctx context.Context, query string, batchSize int) (*model.Table, error) {
	var cols []*model.Column
	err := c.BatchQuery(ctx, query, batchSize, func(rows *sqlx.Rows) error {
		if cols == nil {
			var err error
			if cols, err = c.columnsOf(rows); err != nil {
				return err
			}
		}
		raw, err := rows.SliceScan()
		if err != nil {
			return errors.Wrap(err, "failed to scan row")
		}
		for j, v := range raw {
			cols[j].Values = append(cols[j].Values, c.converter.FromDriverValue(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, errors.Newf("query returned no rows: %s", query)
	}

	t, err := model.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Loaded source table",
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumColumns()))
	return t, nil
}

// ReadTable loads a whole table of the configured schema
func (c *SnowflakeConnector) ReadTable(ctx context.Context, table string, batchSize int) (*model.Table, error) {
	names, err := c.orderColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s.%s ORDER BY %s",
		converter.QuoteIdentifier(strings.ToUpper(c.cfg.Schema)),
		converter.QuoteIdentifier(table),
		strings.Join(names, ", "))
	return c.QueryTable(ctx, query, batchSize)
}

// orderColumns returns every column of table, quoted, in ordinal order for a
// deterministic ORDER BY
func (c *SnowflakeConnector) orderColumns(ctx context.Context, table string) ([]string, error) {
	var names []string
	err := c.db.SelectContext(ctx, &names,
		"SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
		strings.ToUpper(c.cfg.Schema), table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of %s", table)
	}
	if len(names) == 0 {
		return nil, errors.Newf("table %s.%s not found", c.cfg.Schema, table)
	}
	for i, n := range names {
		names[i] = converter.QuoteIdentifier(n)
	}
	return names, nil
}

func (c *SnowflakeConnector) columnsOf(rows *sqlx.Rows) ([]*model.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read column types")
	}
	cols := make([]*model.Column, len(types))
	for i, ct := range types {
		cols[i] = model.NewColumn(ct.Name(), nil)
		cols[i].Type = c.converter.SemanticFromDatabaseType(ct.DatabaseTypeName())
	}
	return cols, nil
}
