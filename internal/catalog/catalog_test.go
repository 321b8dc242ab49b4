package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetric/internal/testutil"
	"github.com/leapstack-labs/leapmetric/pkg/compiler"
	"github.com/leapstack-labs/leapmetric/pkg/core"
)

const ordersYAML = `kind: metric
id: orders
name: Orders
environment_id: prod
data_model_id: shop
table_name: orders
measures:
  - name: cnt
    type: count
    query: id
  - name: total
    type: sum
    query: amount
dimensions:
  - name: region
    query: region
`

const variantsYAML = `kind: variant
id: orders_by_region
name: Orders by region
environment_id: prod
data_model_id: shop
source:
  metric_id: orders
overrides:
  grouped: true
  exclude:
    measures: [total]
---
kind: variant
id: orders_share
environment_id: prod
data_model_id: shop
source:
  metric_id: orders_by_region
derivations:
  - name: cnt_share
    type: percent_of_total
    source:
      measure: cnt
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	ordersPath := writeFile(t, dir, "orders.yaml", ordersYAML)
	variantsPath := writeFile(t, dir, "sub/variants.yml", variantsYAML)
	writeFile(t, dir, "README.md", "not yaml")
	writeFile(t, dir, ".hidden/skip.yaml", "kind: nonsense")

	c, err := Load(dir, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	ids := make([]string, 0, c.Len())
	for _, d := range c.List() {
		ids = append(ids, d.ID())
	}
	assert.Equal(t, []string{"orders", "orders_by_region", "orders_share"}, ids)
	assert.Equal(t, ordersPath, c.File("orders"))
	assert.Equal(t, []string{"orders_by_region", "orders_share"}, c.IDsInFile(variantsPath))

	d, err := c.Fetch(context.Background(), "orders_by_region")
	require.NoError(t, err)
	require.True(t, d.IsVariant())
	assert.Equal(t, "orders", d.Variant.Source.MetricID)
	require.NotNil(t, d.Variant.Overrides.Grouped)
	assert.True(t, *d.Variant.Overrides.Grouped)
	assert.Equal(t, []string{"total"}, d.Variant.Overrides.Exclude.Measures)
}

func TestLoad_CompilesThroughCompiler(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)
	writeFile(t, dir, "variants.yaml", variantsYAML)

	c, err := Load(dir, nil)
	require.NoError(t, err)

	m, err := compiler.New(c).CompileID(context.Background(), "orders_share")
	require.NoError(t, err)

	assert.Equal(t, "orders_share", m.ID)
	assert.Equal(t, []string{"cnt"}, m.MeasureNames())
	assert.True(t, m.Grouped)
	require.Len(t, m.Derivations, 1)
	assert.Equal(t, core.DerivePercentOfTotal, m.Derivations[0].Type)
}

func TestFetch_NotFound(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrMetricNotFound)
}

func TestLoad_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", ordersYAML)
	writeFile(t, dir, "b.yaml", ordersYAML)

	_, err := Load(dir, nil)

	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "orders", dup.ID)
	assert.NotEqual(t, dup.First, dup.Second)
	assert.Contains(t, err.Error(), `duplicate id "orders"`)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unknown top-level field",
			content: "kind: metric\nid: m\nowner: me\n",
			check: func(t *testing.T, err error) {
				var uf *UnknownFieldError
				require.ErrorAs(t, err, &uf)
				assert.Equal(t, "owner", uf.Field)
				assert.Equal(t, core.KindMetric, uf.Kind)
				assert.Contains(t, err.Error(), `use "meta"`)
			},
		},
		{
			name:    "variant-only field on metric",
			content: "kind: metric\nid: m\nsource:\n  metric_id: x\n",
			check: func(t *testing.T, err error) {
				var uf *UnknownFieldError
				require.ErrorAs(t, err, &uf)
				assert.Equal(t, "source", uf.Field)
			},
		},
		{
			name:    "unknown nested field",
			content: "kind: metric\nid: m\nmeasures:\n  - name: a\n    typo: sum\n",
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Contains(t, pe.Message, "typo")
			},
		},
		{
			name:    "missing kind",
			content: "id: m\n",
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Contains(t, pe.Message, "invalid kind")
			},
		},
		{
			name:    "malformed yaml",
			content: "kind: metric\nid: [unclosed\n",
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "bad.yaml", pe.File)
			},
		},
		{
			name:    "missing id",
			content: "kind: variant\nsource:\n  metric_id: x\n",
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Contains(t, pe.Message, "missing an id")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.content))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestParse_InlineSource(t *testing.T) {
	content := `kind: variant
id: v
source:
  metric:
    id: inline_orders
    table_name: orders
    measures:
      - name: cnt
        type: count
combine:
  - metric:
      source:
        metric_id: refunds
    alias: r
    join_on: [region]
`
	defs, err := Parse("inline.yaml", []byte(content))
	require.NoError(t, err)
	require.Len(t, defs, 1)

	v := defs[0].Variant
	require.NotNil(t, v.Source.Inline)
	assert.False(t, v.Source.Inline.IsVariant())
	assert.Equal(t, "orders", v.Source.Inline.Metric.TableName)

	require.Len(t, v.Combine, 1)
	require.True(t, v.Combine[0].Inline.IsVariant())
	assert.Equal(t, []string{"refunds"}, v.References())
}

func TestParse_EmptyDocuments(t *testing.T) {
	defs, err := Parse("empty.yaml", []byte("---\n---\nkind: metric\nid: m\n"))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "m", defs[0].ID())
}

func TestGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)
	writeFile(t, dir, "variants.yaml", variantsYAML)

	c, err := Load(dir, nil)
	require.NoError(t, err)

	g := c.Graph()
	assert.Equal(t, []string{"orders", "orders_by_region", "orders_share"}, g.GetAffectedNodes([]string{"orders"}))
	assert.Empty(t, g.Missing())
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)
	writeFile(t, dir, "variants.yaml", variantsYAML)

	prev, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "orders_by_region", "orders_share"}, Diff(nil, prev))

	same, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, Diff(prev, same))

	writeFile(t, dir, "orders.yaml", strings.Replace(ordersYAML, "name: Orders", "name: All orders", 1))
	writeFile(t, dir, "variants.yaml", strings.SplitN(variantsYAML, "---\n", 2)[0])
	writeFile(t, dir, "refunds.yaml", "kind: metric\nid: refunds\ntable_name: refunds\n")

	next, err := Load(dir, nil)
	require.NoError(t, err)
	changed := Diff(prev, next)
	assert.Equal(t, []string{"orders", "orders_share", "refunds"}, changed)

	assert.Equal(t, []string{"orders", "orders_by_region"}, next.Graph().GetAffectedNodes([]string{"orders"}))
}
