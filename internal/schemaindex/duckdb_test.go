package schemaindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragsql/ragsql/internal/config"
	"github.com/ragsql/ragsql/internal/embedding"
	"github.com/ragsql/ragsql/internal/errors"
)

func newTestStore(t *testing.T) *DuckDBStore {
	t.Helper()

	embedder, err := embedding.NewManager(config.EmbeddingConfig{
		Provider:   "local",
		Dimensions: 256,
	})
	require.NoError(t, err)

	store, err := NewDuckDBStore(config.IndexConfig{
		Path:           filepath.Join(t.TempDir(), "index.db"),
		MaxConnections: 4,
		MaxIdleConns:   2,
		QueryTimeout:   "30s",
	}, embedder)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Initialize(context.Background()))

	return store
}

func cityStatsDoc() Document {
	return Document{
		TableName: "city_stats",
		Text: `CREATE SCHEMA IF NOT EXISTS "public";
CREATE TABLE IF NOT EXISTS "public"."city_stats" (
    "city_name" text,
    "population" integer
);`,
		Summary: "Per-city population statistics.",
	}
}

func ordersDoc() Document {
	return Document{
		TableName: "orders",
		Text: `CREATE SCHEMA IF NOT EXISTS "public";
CREATE TABLE IF NOT EXISTS "public"."orders" (
    "order_id" integer,
    "total" numeric
);`,
	}
}

func usersDoc() Document {
	return Document{
		TableName: "users",
		Text: `CREATE SCHEMA IF NOT EXISTS "public";
CREATE TABLE IF NOT EXISTS "public"."users" (
    "user_id" integer,
    "email" text
);`,
	}
}

func TestAddTableAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", ordersDoc()))

	result, err := store.Retrieve(ctx, "salesdb", "which city has the biggest population?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, result)

	assert.Equal(t, "city_stats", result[0].TableName)
	assert.Contains(t, result[0].Text, `"city_stats"`)
	assert.Equal(t, "Per-city population statistics.", result[0].Summary)
}

func TestRetrieveTopKBound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", ordersDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", usersDoc()))

	// Never more than k
	result, err := store.Retrieve(ctx, "salesdb", "population", 2)
	require.NoError(t, err)
	assert.Len(t, result, 2)

	// Fewer than k iff fewer are indexed
	result, err = store.Retrieve(ctx, "salesdb", "population", 10)
	require.NoError(t, err)
	assert.Len(t, result, 3)
}

func TestRetrieveRankedDescending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", ordersDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", usersDoc()))

	result, err := store.Retrieve(ctx, "salesdb", "city population", 3)
	require.NoError(t, err)

	for i := 1; i < len(result); i++ {
		assert.GreaterOrEqual(t, result[i-1].Score, result[i].Score)
	}
}

func TestRetrieveNoIndex(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Retrieve(context.Background(), "emptydb", "anything", 3)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestAddTableReplacesExistingNode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))

	updated := cityStatsDoc()
	updated.Summary = "Updated summary."
	require.NoError(t, store.AddTable(ctx, "salesdb", updated))

	tables, err := store.ListTables(ctx, "salesdb")
	require.NoError(t, err)
	assert.Equal(t, []string{"city_stats"}, tables)

	result, err := store.Retrieve(ctx, "salesdb", "city population", 3)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Updated summary.", result[0].Summary)
}

func TestDeleteTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", ordersDoc()))

	require.NoError(t, store.DeleteTable(ctx, "salesdb", "city_stats"))

	tables, err := store.ListTables(ctx, "salesdb")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, tables)
}

func TestDeleteTableMissingIsNoop(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.DeleteTable(context.Background(), "salesdb", "ghost"))
}

func TestScopesAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.AddTable(ctx, "hrdb", usersDoc()))

	tables, err := store.ListTables(ctx, "salesdb")
	require.NoError(t, err)
	assert.Equal(t, []string{"city_stats"}, tables)

	_, err = store.Retrieve(ctx, "hrdb", "city population", 3)
	require.NoError(t, err)
}

func TestRebuildConvergesWithAuthoritativeList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Drift: index holds a table the authoritative list no longer has and
	// misses one it does
	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.AddTable(ctx, "salesdb", ordersDoc()))

	authoritative := []Document{cityStatsDoc(), usersDoc()}
	require.NoError(t, store.Rebuild(ctx, "salesdb", authoritative))

	tables, err := store.ListTables(ctx, "salesdb")
	require.NoError(t, err)
	assert.Equal(t, []string{"city_stats", "users"}, tables)
}

func TestRebuildEmptyClearsScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTable(ctx, "salesdb", cityStatsDoc()))
	require.NoError(t, store.Rebuild(ctx, "salesdb", nil))

	tables, err := store.ListTables(ctx, "salesdb")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
