package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragsql/ragsql/internal/config"
)

func localConfig(dims int) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Provider:   "local",
		Dimensions: dims,
	}
}

func TestNewProviderUnsupported(t *testing.T) {
	_, err := NewProvider(config.EmbeddingConfig{Provider: "cohere"})
	assert.Error(t, err)
}

func TestLocalProviderDeterministic(t *testing.T) {
	provider, err := NewLocalProvider(localConfig(64))
	require.NoError(t, err)

	ctx := context.Background()

	a, err := provider.GenerateEmbedding(ctx, "population of cities")
	require.NoError(t, err)

	b, err := provider.GenerateEmbedding(ctx, "population of cities")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestLocalProviderSimilarityOrdering(t *testing.T) {
	provider, err := NewLocalProvider(localConfig(256))
	require.NoError(t, err)

	ctx := context.Background()

	question, err := provider.GenerateEmbedding(ctx, "which city has the biggest population?")
	require.NoError(t, err)

	cityStats, err := provider.GenerateEmbedding(ctx,
		`CREATE TABLE IF NOT EXISTS "public"."city_stats" ("city_name" text, "population" integer)`)
	require.NoError(t, err)

	orders, err := provider.GenerateEmbedding(ctx,
		`CREATE TABLE IF NOT EXISTS "public"."orders" ("order_id" integer, "total" numeric)`)
	require.NoError(t, err)

	assert.Greater(t, cosine(question, cityStats), cosine(question, orders))
}

func TestLocalProviderNormalized(t *testing.T) {
	provider, err := NewLocalProvider(localConfig(128))
	require.NoError(t, err)

	vec, err := provider.GenerateEmbedding(context.Background(), "some schema text")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestLocalProviderEmptyText(t *testing.T) {
	provider, err := NewLocalProvider(localConfig(32))
	require.NoError(t, err)

	vec, err := provider.GenerateEmbedding(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 32)
}

func TestTokenizeSplitsIdentifiers(t *testing.T) {
	tokens := tokenize(`"public"."city_stats" population INTEGER`)
	assert.Contains(t, tokens, "city")
	assert.Contains(t, tokens, "stats")
	assert.Contains(t, tokens, "population")
	assert.NotContains(t, tokens, "city_stats")
}

func TestManagerDimensionMismatch(t *testing.T) {
	_, err := NewManager(config.EmbeddingConfig{
		Provider:   "local",
		Dimensions: 0,
	})
	assert.Error(t, err)
}

func TestLocalProviderRejectsNonPositiveDimensions(t *testing.T) {
	for _, dims := range []int{0, -8} {
		_, err := NewLocalProvider(localConfig(dims))
		assert.Error(t, err)
	}
}

func TestOpenAIProviderGenerateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, 3, req.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(config.EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Dimensions: 3,
	})
	require.NoError(t, err)

	vec, err := provider.GenerateEmbedding(context.Background(), "city populations")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(config.EmbeddingConfig{Provider: "openai"})
	assert.Error(t, err)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
