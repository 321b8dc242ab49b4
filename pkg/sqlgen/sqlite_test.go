package sqlgen_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/leapmetric/pkg/compiler"
	"github.com/leapstack-labs/leapmetric/pkg/core"
	_ "github.com/leapstack-labs/leapmetric/pkg/generators/all" // Register all generators
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

const fixtureSQL = `
CREATE TABLE orders (id INTEGER PRIMARY KEY, region TEXT, amount INTEGER);
CREATE TABLE refunds (id INTEGER PRIMARY KEY, region TEXT, amount INTEGER);
CREATE TABLE base (id INTEGER PRIMARY KEY, region TEXT, amount INTEGER);
INSERT INTO orders (region, amount) VALUES ('east', 100), ('east', 50), ('west', 70), ('north', 30);
INSERT INTO refunds (region, amount) VALUES ('east', 20), ('west', 70);
INSERT INTO base (region, amount) VALUES ('a', 30), ('b', 10);
`

func openFixture(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(fixtureSQL)
	require.NoError(t, err)
	return db
}

func queryRows(t *testing.T, db *sql.DB, query string) ([]string, [][]any) {
	t.Helper()

	rows, err := db.Query(query)
	require.NoError(t, err, query)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, vals)
	}
	require.NoError(t, rows.Err())
	return cols, out
}

func regionMetric(id, name, table, measure string) *core.SemanticMetric {
	return &core.SemanticMetric{
		ID:         id,
		Name:       name,
		TableName:  table,
		Dimensions: []core.Dimension{{Name: "region"}},
		Measures:   []core.Measure{{Name: measure, Type: core.MeasureSum, Query: "amount"}},
		Grouped:    true,
	}
}

func ptr[T any](v T) *T { return &v }

func TestGenerate_RunsOnSQLite(t *testing.T) {
	orders := regionMetric("orders", "Orders", "orders", "revenue")
	refunds := regionMetric("r", "Refund Totals", "refunds", "refunded")
	byRegion := []core.OrderBy{{Name: "region"}}

	tests := []struct {
		name    string
		variant *core.SemanticMetricVariant
		columns []string
		want    [][]any
	}{
		{
			name: "alias with a space",
			variant: &core.SemanticMetricVariant{
				ID:        "net",
				Source:    core.MetricRef{MetricID: "orders"},
				Overrides: &core.Overrides{Ordered: ptr(true), Add: &core.Components{Order: byRegion}},
				Combine:   []core.MetricRef{{MetricID: "r", JoinOn: []string{"region"}}},
				Derivations: []core.DerivedEntity{
					{Name: "net", Type: core.DeriveSubtract, Source: core.SourceRef{Measure: "revenue", By: "Refund Totals.refunded"}},
				},
			},
			columns: []string{"region", "revenue", "Refund Totals_refunded", "net"},
			want: [][]any{
				{"east", int64(150), int64(20), int64(130)},
				{"north", int64(30), nil, nil},
				{"west", int64(70), int64(70), int64(0)},
			},
		},
		{
			name: "alias matching its table name with divide across CTEs",
			variant: &core.SemanticMetricVariant{
				ID:        "ratio",
				Source:    core.MetricRef{MetricID: "orders"},
				Overrides: &core.Overrides{Ordered: ptr(true), Add: &core.Components{Order: byRegion}},
				Combine:   []core.MetricRef{{MetricID: "r", Alias: "refunds", JoinOn: []string{"region"}}},
				Derivations: []core.DerivedEntity{
					{Name: "per_refund", Type: core.DeriveDivide, Source: core.SourceRef{Measure: "revenue", By: "refunds.refunded"}},
				},
			},
			columns: []string{"region", "revenue", "refunds_refunded", "per_refund"},
			want: [][]any{
				{"east", int64(150), int64(20), 7.5},
				{"north", int64(30), nil, nil},
				{"west", int64(70), int64(70), 1.0},
			},
		},
		{
			name: "order and limit apply after the window",
			variant: &core.SemanticMetricVariant{
				ID:     "top",
				Source: core.MetricRef{MetricID: "orders"},
				Overrides: &core.Overrides{
					Ordered: ptr(true),
					Limit:   ptr(2),
					Add:     &core.Components{Order: []core.OrderBy{{Name: "revenue", Direction: "desc"}}},
				},
				Combine: []core.MetricRef{{MetricID: "r", Alias: "refunds", JoinOn: []string{"region"}}},
				Derivations: []core.DerivedEntity{
					{Name: "rt", Type: core.DeriveRunningTotal, Source: core.SourceRef{Measure: "revenue"}, OrderDimension: "region"},
				},
			},
			columns: []string{"region", "revenue", "refunds_refunded", "rt"},
			want: [][]any{
				{"east", int64(150), int64(20), int64(150)},
				{"west", int64(70), int64(70), int64(250)},
			},
		},
	}

	gen, err := sqlgen.New(core.DataSourceSQLite)
	require.NoError(t, err)
	comp := compiler.New(compiler.NewMapFetcher(core.MetricDefinition(orders), core.MetricDefinition(refunds)))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := comp.Compile(context.Background(), core.VariantDefinition(tt.variant))
			require.NoError(t, err)

			query, err := gen.Generate(resolved)
			require.NoError(t, err)

			cols, rows := queryRows(t, openFixture(t), query)
			assert.Equal(t, tt.columns, cols)
			assert.Equal(t, tt.want, rows, query)
		})
	}
}

func TestGenerate_RunsOnSQLite_TableNamedBase(t *testing.T) {
	m := regionMetric("shares", "Shares", "base", "total")
	m.Ordered = true
	m.Order = []core.OrderBy{{Name: "region"}}
	m.Derivations = []core.DerivedEntity{
		{Name: "pct", Type: core.DerivePercentOfTotal, Source: core.SourceRef{Measure: "total"}},
	}

	resolved, err := compiler.New(compiler.NewMapFetcher()).Compile(context.Background(), core.MetricDefinition(m))
	require.NoError(t, err)

	gen, err := sqlgen.New(core.DataSourceSQLite)
	require.NoError(t, err)
	query, err := gen.Generate(resolved)
	require.NoError(t, err)

	_, rows := queryRows(t, openFixture(t), query)
	assert.Equal(t, [][]any{
		{"a", int64(30), 75.0},
		{"b", int64(10), 25.0},
	}, rows, query)
}
