package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetric/internal/testutil"
	"github.com/leapstack-labs/leapmetric/pkg/compiler"
	"github.com/leapstack-labs/leapmetric/pkg/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func orders() *core.Definition {
	return core.MetricDefinition(&core.SemanticMetric{
		ID:        "orders",
		Name:      "Orders",
		TableName: "orders",
		Measures:  []core.Measure{{Name: "cnt", Type: core.MeasureCount, Query: "id"}},
	})
}

func variantOf(id, source string) *core.Definition {
	return core.VariantDefinition(&core.SemanticMetricVariant{
		ID:     id,
		Name:   id,
		Source: core.MetricRef{MetricID: source},
	})
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	_, err = s.Put(ctx, orders())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs no new migrations and keeps the data.
	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	d, err := s.Fetch(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", d.Metric.TableName)
}

func TestPutAndFetch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, orders())
	require.NoError(t, err)
	_, err = s.Put(ctx, variantOf("by_region", "orders"))
	require.NoError(t, err)

	rec, err := s.Get(ctx, "by_region")
	require.NoError(t, err)
	assert.Equal(t, core.KindVariant, rec.Kind)
	assert.Equal(t, "orders", rec.SourceID)
	assert.False(t, rec.CreatedAt.IsZero())
	require.True(t, rec.Definition.IsVariant())
	assert.Equal(t, "orders", rec.Definition.Variant.Source.MetricID)

	_, err = s.Fetch(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrMetricNotFound)
}

func TestPut_AssignsUUID(t *testing.T) {
	s := openTestStore(t)
	def := core.MetricDefinition(&core.SemanticMetric{Name: "anonymous", TableName: "t"})

	id, err := s.Put(context.Background(), def)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, def.Metric.ID)
}

func TestPut_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Put(context.Background(), &core.Definition{})
	assert.ErrorIs(t, err, core.ErrInvalidDefinition)
}

func TestPut_UpdateKeepsCreatedAtAndClearsQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	_, err := s.Put(ctx, orders())
	require.NoError(t, err)
	_, err = s.Put(ctx, variantOf("a", "orders"))
	require.NoError(t, err)
	_, err = s.Put(ctx, variantOf("b", "a"))
	require.NoError(t, err)
	for _, id := range []string{"orders", "a", "b"} {
		require.NoError(t, s.SaveCompiledQuery(ctx, id, "SELECT "+id))
	}

	clock = clock.Add(time.Hour)
	_, err = s.Put(ctx, orders())
	require.NoError(t, err)

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Empty(t, rec.CompiledQuery, rec.ID)
	}

	rec, err := s.Get(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Before(rec.UpdatedAt))
}

func TestSaveCompiledQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, orders())
	require.NoError(t, err)
	require.NoError(t, s.SaveCompiledQuery(ctx, "orders", "SELECT COUNT(id) FROM orders"))

	rec, err := s.Get(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(id) FROM orders", rec.CompiledQuery)

	assert.ErrorIs(t, s.SaveCompiledQuery(ctx, "ghost", "x"), core.ErrMetricNotFound)
}

func TestDeleteCascade(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, d := range []*core.Definition{
		orders(),
		variantOf("a", "orders"),
		variantOf("b", "a"),
		variantOf("c", "orders"),
		core.MetricDefinition(&core.SemanticMetric{ID: "other", TableName: "x"}),
		variantOf("d", "other"),
	} {
		_, err := s.Put(ctx, d)
		require.NoError(t, err)
	}

	deleted, err := s.DeleteCascade(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deleted)

	deleted, err = s.DeleteCascade(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "orders"}, deleted)

	recs, err := s.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"d", "other"}, ids)

	_, err = s.DeleteCascade(ctx, "orders")
	assert.ErrorIs(t, err, core.ErrMetricNotFound)
}

func TestStore_FeedsCompiler(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, orders())
	require.NoError(t, err)
	_, err = s.Put(ctx, variantOf("by_region", "orders"))
	require.NoError(t, err)

	m, err := compiler.New(s).CompileID(ctx, "by_region")
	require.NoError(t, err)
	assert.Equal(t, "by_region", m.ID)
	assert.Equal(t, []string{"cnt"}, m.MeasureNames())
}
