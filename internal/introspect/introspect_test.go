package introspect

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/joininfer"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestLoad_InformationSchema(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(infoSchemaColumns).WithArgs("sales").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("customers", "id", "integer").
			AddRow("customers", "name", "text").
			AddRow("orders", "id", "integer").
			AddRow("orders", "buyer", "integer"),
	)
	mock.ExpectQuery(infoSchemaForeignKeys).WithArgs("sales").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "constraint_name", "column_name", "ref_table", "ref_column"}).
			AddRow("orders", "orders_buyer_fkey", "buyer", "customers", "id").
			AddRow("ghost", "ghost_fkey", "x", "customers", "id"),
	)

	schema, err := Load(context.Background(), db, FlavorInformationSchema, Options{Schema: "sales"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 2)
	assert.Equal(t, "customers", schema.Tables[0].Name)
	assert.Equal(t, []string{"id", "buyer"}, schema.Tables[1].ColumnNames())
	assert.Equal(t, []core.ForeignKey{{
		Name:      "orders_buyer_fkey",
		Relations: []core.ForeignKeyRelation{{Column: "buyer", ReferencedTable: "customers", ReferencedColumn: "id"}},
	}}, schema.Tables[1].ForeignKeys)

	// Declared keys drive join inference.
	m := &core.SemanticMetric{TableName: "orders", Dimensions: []core.Dimension{{Name: "name", Table: "customers"}}}
	matches := joininfer.InferMatches(m, schema)
	require.Len(t, matches, 1)
	assert.Equal(t, joininfer.StrategyForeignKey, matches[0].Strategy)
}

func TestLoad_MySQLCompositeKey(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(mysqlColumns).WithArgs("").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("lines", "order_id", "int").
			AddRow("lines", "shop_id", "int"),
	)
	mock.ExpectQuery(mysqlForeignKeys).WithArgs("").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "constraint_name", "column_name", "ref_table", "ref_column"}).
			AddRow("lines", "fk_order", "order_id", "orders", "id").
			AddRow("lines", "fk_order", "shop_id", "orders", "shop_id"),
	)

	schema, err := Load(context.Background(), db, FlavorMySQL, Options{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 1)
	require.Len(t, schema.Tables[0].ForeignKeys, 1)
	assert.Len(t, schema.Tables[0].ForeignKeys[0].Relations, 2)
}

func TestLoad_ClickHouseAndTableFilter(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(clickhouseColumns).WithArgs("analytics", "analytics").WillReturnRows(
		sqlmock.NewRows([]string{"table", "name", "type"}).
			AddRow("events", "ts", "DateTime").
			AddRow("sessions", "id", "UInt64"),
	)

	schema, err := Load(context.Background(), db, FlavorClickHouse, Options{Schema: "analytics", Tables: []string{"events"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "events", schema.Tables[0].Name)
	assert.Equal(t, "DateTime", schema.Tables[0].Columns[0].Type)
}

func TestLoad_SkipForeignKeys(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(infoSchemaColumns).WithArgs("").WillReturnRows(
		sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).AddRow("t", "c", "int"),
	)

	_, err := Load(context.Background(), db, FlavorInformationSchema, Options{SkipForeignKeys: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_QueryError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(infoSchemaColumns).WillReturnError(sql.ErrConnDone)

	_, err := Load(context.Background(), db, FlavorInformationSchema, Options{})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestLoad_UnknownFlavor(t *testing.T) {
	db, _ := newMock(t)
	_, err := Load(context.Background(), db, Flavor("oracle"), Options{})
	assert.Error(t, err)
}

func TestLoad_SQLite(t *testing.T) {
	ctx := context.Background()
	db, flavor, err := Open(ctx, core.DataSourceSQLite, filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, FlavorSQLite, flavor)

	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, buyer INTEGER REFERENCES customers, amount REAL)`,
	} {
		_, err = db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	schema, err := Load(ctx, db, flavor, Options{})
	require.NoError(t, err)

	require.Len(t, schema.Tables, 2)
	orders := schema.Table("orders")
	require.NotNil(t, orders)
	assert.Equal(t, []string{"id", "buyer", "amount"}, orders.ColumnNames())
	assert.Equal(t, "REAL", orders.Columns[2].Type)
	require.Len(t, orders.ForeignKeys, 1)
	assert.Equal(t, core.ForeignKeyRelation{Column: "buyer", ReferencedTable: "customers", ReferencedColumn: "id"},
		orders.ForeignKeys[0].Relations[0])
}

func TestIntrospect_SQLiteWithParams(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, _, err := Open(ctx, core.DataSourceSQLite, path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id))`,
		`CREATE TABLE audit (id INTEGER PRIMARY KEY)`,
	} {
		_, err = db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	schema, err := Introspect(ctx, core.DataSourceSQLite, path, "", map[string]any{"tables": "orders,customers"})
	require.NoError(t, err)

	assert.Len(t, schema.Tables, 2)
	assert.Nil(t, schema.Table("audit"))

	_, err = Introspect(ctx, core.DataSourceSQLite, path, "", map[string]any{"bogus": true})
	assert.ErrorContains(t, err, "invalid target params")
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, _, err := Open(context.Background(), core.DataSourceSnowflake, "x")

	var ue *UnsupportedTypeError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "clickhouse, duckdb, mysql, postgres, sqlite")

	_, err = FlavorFor(core.DataSourceMongoDB)
	assert.ErrorAs(t, err, &ue)
}

func TestFlavorFor(t *testing.T) {
	tests := map[core.DataSourceType]Flavor{
		"postgres":   FlavorInformationSchema,
		" DuckDB ":   FlavorInformationSchema,
		"mysql":      FlavorMySQL,
		"sqlite":     FlavorSQLite,
		"clickhouse": FlavorClickHouse,
	}
	for typ, want := range tests {
		got, err := FlavorFor(typ)
		require.NoError(t, err, typ)
		assert.Equal(t, want, got, typ)
	}
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(map[string]any{
		"schema":            "sales",
		"tables":            "orders,customers",
		"skip_foreign_keys": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, Options{Schema: "sales", Tables: []string{"orders", "customers"}, SkipForeignKeys: true}, opts)

	opts, err = DecodeOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, Options{}, opts)

	_, err = DecodeOptions(map[string]any{"schemaa": "x"})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tables:
  - name: orders
    columns:
      - name: id
      - name: customer_id
  - name: customers
    columns:
      - name: id
`), 0o600))

	schema, err := LoadFile(path)
	require.NoError(t, err)

	joins := joininfer.Infer(&core.SemanticMetric{
		TableName:  "orders",
		Dimensions: []core.Dimension{{Name: "id", Table: "customers"}},
	}, schema)
	require.Len(t, joins, 1)
	assert.Equal(t, "customer_id", joins[0].Conditions[0].LeftColumn)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
