package connector

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/David-Botos/data-cleaner/pkg/config"
	"github.com/David-Botos/data-cleaner/pkg/model"
)

func newMockPostgres(t *testing.T) (*PostgresConnector, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	cfg := &config.PostgresConfig{Database: "clean", Schema: "public"}
	return newPostgresConnector(sqlx.NewDb(mockDB, "postgres"), cfg, zaptest.NewLogger(t)), mock
}

func newMockSnowflake(t *testing.T) (*SnowflakeConnector, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	cfg := &config.SnowflakeConfig{Database: "RAW", Schema: "public"}
	return newSnowflakeConnector(sqlx.NewDb(mockDB, "snowflake"), cfg, zaptest.NewLogger(t)), mock
}

func TestCreateTableIfNotExists_Sqlmock(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("public", "people").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE TABLE "public"\."people" \( "id" BIGINT NULL, "name" TEXT NULL, PRIMARY KEY \("id"\) \)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.CreateTableIfNotExists(context.Background(), "public", "people",
		[]string{`"id" BIGINT NULL`, `"name" TEXT NULL`}, "id")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableSkipsExisting_Sqlmock(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, c.CreateTableIfNotExists(context.Background(), "public", "people", []string{`"id" BIGINT NULL`}, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInsertSplitsBatches_Sqlmock(t *testing.T) {
	c, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO "public"\."t" \("a", "b"\) VALUES \(\$1, \$2\), \(\$3, \$4\)$`).
		WithArgs(1, "x", 2, "y").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO "public"\."t" \("a", "b"\) VALUES \(\$1, \$2\)$`).
		WithArgs(3, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := c.BatchInsert(context.Background(), "public", "t", []string{"a", "b"},
		[][]interface{}{{1, "x"}, {2, "y"}, {3, nil}}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchInsertRejectsShortRow_Sqlmock(t *testing.T) {
	c, _ := newMockPostgres(t)
	_, err := c.BatchInsert(context.Background(), "public", "t", []string{"a", "b"}, [][]interface{}{{1}}, 10)
	assert.Error(t, err)
}

func TestWriteTable_Sqlmock(t *testing.T) {
	c, mock := newMockPostgres(t)

	tbl := model.MustTable(
		model.NewColumn("age", []model.Value{model.IntValue(30), model.Missing()}),
		model.NewColumn("signup", []model.Value{
			model.DateValue(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
			model.DateValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		}),
	)
	tbl.Column(0).Type = model.TypeInteger
	tbl.Column(1).Type = model.TypeDate

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("public", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE TABLE "public"\."customers" \( "age" BIGINT NULL, "signup" TIMESTAMP NULL \)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "public"\."customers" \("age", "signup"\)`).
		WithArgs(int64(30), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := c.WriteTable(context.Background(), "customers", tbl, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryTable_Sqlmock(t *testing.T) {
	c, mock := newMockSnowflake(t)

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("ID").OfType("NUMBER(38,0)", int64(0)),
		sqlmock.NewColumn("EMAIL").OfType("VARCHAR", ""),
		sqlmock.NewColumn("SCORE").OfType("FLOAT", 0.0),
	).
		AddRow(int64(1), "a@x.com", 1.5).
		AddRow(int64(2), nil, nil)
	mock.ExpectQuery(`SELECT \* FROM raw LIMIT 100 OFFSET 0`).WillReturnRows(rows)

	tbl, err := c.QueryTable(context.Background(), "SELECT * FROM raw", 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "EMAIL", "SCORE"}, tbl.Names())
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, model.TypeInteger, tbl.Column(0).Type)
	assert.Equal(t, model.TypeString, tbl.Column(1).Type)
	assert.Equal(t, model.TypeFloat, tbl.Column(2).Type)
	assert.Equal(t, model.IntValue(2), tbl.Column(0).Values[1])
	assert.True(t, tbl.Column(1).Values[1].IsMissing())
	assert.Equal(t, model.FloatValue(1.5), tbl.Column(2).Values[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryTablePages_Sqlmock(t *testing.T) {
	c, mock := newMockSnowflake(t)

	mock.ExpectQuery(`LIMIT 2 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows([]string{"N"}).AddRow("a").AddRow("b"))
	mock.ExpectQuery(`LIMIT 2 OFFSET 2`).
		WillReturnRows(sqlmock.NewRows([]string{"N"}).AddRow("c"))

	tbl, err := c.QueryTable(context.Background(), "SELECT N FROM raw ORDER BY N", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, model.StringValue("c"), tbl.Column(0).Values[2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadTable_Sqlmock(t *testing.T) {
	c, mock := newMockSnowflake(t)

	mock.ExpectQuery(`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS`).
		WithArgs("PUBLIC", "CUSTOMERS").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("ID").AddRow("NAME"))
	mock.ExpectQuery(`SELECT \* FROM "PUBLIC"\."CUSTOMERS" ORDER BY "ID", "NAME" LIMIT 10000 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "NAME"}).AddRow(int64(1), "Ann"))

	tbl, err := c.ReadTable(context.Background(), "CUSTOMERS", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTables_Sqlmock(t *testing.T) {
	c, mock := newMockSnowflake(t)

	mock.ExpectQuery(`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES`).
		WithArgs("PUBLIC").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("CUSTOMERS").AddRow("ORDERS"))

	tables, err := c.GetTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOMERS", "ORDERS"}, tables)
}

func TestFactoryRequiresConfiguration(t *testing.T) {
	f := NewConnectorFactory(&config.Config{}, zaptest.NewLogger(t))

	_, err := f.CreateSnowflakeConnector(context.Background())
	assert.True(t, errors.Is(err, ErrNotConfigured))
	_, err = f.CreatePostgresConnector(context.Background())
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
