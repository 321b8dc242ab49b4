package joininfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

func cols(names ...string) []core.ColumnSchema {
	out := make([]core.ColumnSchema, 0, len(names))
	for _, n := range names {
		out = append(out, core.ColumnSchema{Name: n})
	}
	return out
}

func TestInfer_OrdersCustomers(t *testing.T) {
	schema := &core.DatabaseSchema{Tables: []core.TableSchema{
		{Name: "orders", Columns: cols("id", "customer_id")},
		{Name: "customers", Columns: cols("id", "name")},
	}}
	m := &core.SemanticMetric{
		TableName:  "orders",
		Dimensions: []core.Dimension{{Name: "name", Table: "customers"}},
	}

	joins := Infer(m, schema)

	require.Len(t, joins, 1)
	j := joins[0]
	assert.Equal(t, core.JoinTypeLeft, j.Type)
	assert.Equal(t, "orders", j.LeftTable)
	assert.Equal(t, "customers", j.RightTable)
	assert.Equal(t, []core.JoinCondition{{LeftColumn: "customer_id", RightColumn: "id", Operator: "="}}, j.Conditions)
}

func TestInferMatches_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		tables   []core.TableSchema
		want     Match
		strategy Strategy
	}{
		{
			name: "foreign key on primary",
			tables: []core.TableSchema{
				{Name: "orders", Columns: cols("id", "buyer", "customer_id"), ForeignKeys: []core.ForeignKey{{
					Name:      "fk_buyer",
					Relations: []core.ForeignKeyRelation{{Column: "buyer", ReferencedTable: "customers", ReferencedColumn: "id"}},
				}}},
				{Name: "customers", Columns: cols("id", "name")},
			},
			want: Match{LeftTable: "orders", LeftColumn: "buyer", RightTable: "customers", RightColumn: "id", Strategy: StrategyForeignKey},
		},
		{
			name: "foreign key on target",
			tables: []core.TableSchema{
				{Name: "orders", Columns: cols("id", "code")},
				{Name: "customers", Columns: cols("id", "order_code"), ForeignKeys: []core.ForeignKey{{
					Relations: []core.ForeignKeyRelation{{Column: "order_code", ReferencedTable: "public.orders", ReferencedColumn: "code"}},
				}}},
			},
			want: Match{LeftTable: "orders", LeftColumn: "code", RightTable: "customers", RightColumn: "order_code", Strategy: StrategyForeignKey},
		},
		{
			name: "foreign key on missing column is ignored",
			tables: []core.TableSchema{
				{Name: "orders", Columns: cols("id", "customer_id"), ForeignKeys: []core.ForeignKey{{
					Relations: []core.ForeignKeyRelation{{Column: "ghost", ReferencedTable: "customers", ReferencedColumn: "id"}},
				}}},
				{Name: "customers", Columns: cols("id")},
			},
			want: Match{LeftTable: "orders", LeftColumn: "customer_id", RightTable: "customers", RightColumn: "id", Strategy: StrategyNaming},
		},
		{
			name: "common column prefers id names",
			tables: []core.TableSchema{
				{Name: "orders", Columns: cols("id", "region", "tenant_id", "account_id")},
				{Name: "customers", Columns: cols("id", "region", "tenant_id", "account_id")},
			},
			want: Match{LeftTable: "orders", LeftColumn: "account_id", RightTable: "customers", RightColumn: "account_id", Strategy: StrategyCommon},
		},
		{
			name: "common column alphabetical without id names",
			tables: []core.TableSchema{
				{Name: "orders", Columns: cols("zone", "region")},
				{Name: "customers", Columns: cols("region", "zone")},
			},
			want: Match{LeftTable: "orders", LeftColumn: "region", RightTable: "customers", RightColumn: "region", Strategy: StrategyCommon},
		},
		{
			name: "naming convention reverse direction",
			tables: []core.TableSchema{
				{Name: "orders", Columns: cols("id", "total")},
				{Name: "customers", Columns: cols("id", "order_id")},
			},
			want: Match{LeftTable: "orders", LeftColumn: "id", RightTable: "customers", RightColumn: "order_id", Strategy: StrategyNaming},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &core.SemanticMetric{
				TableName: "orders",
				Measures:  []core.Measure{{Name: "n", Type: core.MeasureCount, Table: "customers"}},
			}
			matches := InferMatches(m, &core.DatabaseSchema{Tables: tt.tables})
			require.Len(t, matches, 1)
			assert.Equal(t, tt.want, matches[0])
		})
	}
}

func TestInfer_SkipsUnknownAndUnmatched(t *testing.T) {
	schema := &core.DatabaseSchema{Tables: []core.TableSchema{
		{Name: "orders", Columns: cols("id", "total")},
		{Name: "weather", Columns: cols("day", "temp")},
	}}
	m := &core.SemanticMetric{
		TableName: "orders",
		Filters: []core.Filter{
			{Name: "hot", Table: "weather", Column: "temp", Operator: "gt", Values: []any{30}},
			{Name: "x", Table: "nowhere", Column: "y", Operator: "is_null"},
		},
	}

	assert.Empty(t, Infer(m, schema))
}

func TestInfer_AlreadyJoined(t *testing.T) {
	schema := &core.DatabaseSchema{Tables: []core.TableSchema{
		{Name: "orders", Columns: cols("id", "customer_id")},
		{Name: "customers", Columns: cols("id", "name")},
	}}
	m := &core.SemanticMetric{
		TableName:  "orders",
		Dimensions: []core.Dimension{{Name: "name", Table: "customers"}},
		Joins:      []core.Join{{Name: "c", LeftTable: "orders", RightTable: "customers"}},
	}

	assert.Nil(t, Infer(m, schema))
}

func TestInfer_ChainsThroughInferredTables(t *testing.T) {
	schema := &core.DatabaseSchema{Tables: []core.TableSchema{
		{Name: "order_items", Columns: cols("id", "order_id", "qty")},
		{Name: "orders", Columns: cols("id", "customer_id")},
		{Name: "customers", Columns: cols("id", "name")},
	}}
	m := &core.SemanticMetric{
		TableName:  "order_items",
		Measures:   []core.Measure{{Name: "qty", Type: core.MeasureSum, Table: "order_items"}},
		Dimensions: []core.Dimension{{Name: "name", Table: "customers"}, {Name: "day", Table: "orders"}},
	}

	matches := InferMatches(m, schema)

	// customers sorts before orders and only links through it, so nothing
	// can reach customers when it is tried.
	require.Len(t, matches, 1)
	assert.Equal(t, "orders", matches[0].RightTable)
	assert.Equal(t, "order_id", matches[0].LeftColumn)
}

func TestInfer_UsesExistingJoinedTables(t *testing.T) {
	schema := &core.DatabaseSchema{Tables: []core.TableSchema{
		{Name: "order_items", Columns: cols("id", "order_id")},
		{Name: "orders", Columns: cols("id", "customer_id")},
		{Name: "customers", Columns: cols("id", "name")},
	}}
	m := &core.SemanticMetric{
		TableName:  "order_items",
		Dimensions: []core.Dimension{{Name: "name", Table: "customers"}},
		Joins: []core.Join{{
			Name: "o", Type: core.JoinTypeLeft, LeftTable: "order_items", RightTable: "orders",
			Conditions: []core.JoinCondition{{LeftColumn: "order_id", RightColumn: "id"}},
		}},
	}

	joins := Infer(m, schema)

	require.Len(t, joins, 1)
	assert.Equal(t, "orders", joins[0].LeftTable)
	assert.Equal(t, "customers", joins[0].RightTable)
	assert.Equal(t, "customer_id", joins[0].Conditions[0].LeftColumn)
}

func TestInfer_QualifiedSchemaNames(t *testing.T) {
	schema := &core.DatabaseSchema{Tables: []core.TableSchema{
		{Name: "public.orders", Columns: cols("id", "customer_id")},
		{Name: "public.customers", Columns: cols("id", "name")},
	}}
	m := &core.SemanticMetric{
		TableName:  "orders",
		Dimensions: []core.Dimension{{Name: "name", Table: "customers"}},
	}

	joins := Infer(m, schema)
	require.Len(t, joins, 1)
	assert.Equal(t, "customers", joins[0].RightTable)
}

func TestInfer_NilInputs(t *testing.T) {
	assert.Nil(t, Infer(nil, &core.DatabaseSchema{}))
	assert.Nil(t, Infer(&core.SemanticMetric{TableName: "x"}, nil))
	assert.Nil(t, Infer(&core.SemanticMetric{}, &core.DatabaseSchema{}))
}

func TestSingularize(t *testing.T) {
	tests := map[string]string{
		"categories": "category",
		"addresses":  "address",
		"boxes":      "box",
		"quizzes":    "quizz",
		"orders":     "order",
		"class":      "class",
		"data":       "data",
		"Customers":  "Customer",
	}
	for in, want := range tests {
		assert.Equal(t, want, Singularize(in), in)
	}
}

func TestApply(t *testing.T) {
	m := &core.SemanticMetric{TableName: "orders", CompiledQuery: "SELECT 1"}
	joins := []core.Join{{Name: "orders_customers", Type: core.JoinTypeLeft, LeftTable: "orders", RightTable: "customers"}}

	out, err := Apply(m, joins)
	require.NoError(t, err)

	assert.Len(t, out.Joins, 1)
	assert.Empty(t, out.CompiledQuery)
	assert.Empty(t, m.Joins)
}
