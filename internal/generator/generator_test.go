package generator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/llm"
)

// stubService implements llm.Service with canned responses per schema name
type stubService struct {
	responses map[string]string
	err       error
	delay     time.Duration
	calls     []llm.StructuredRequest
}

func (s *stubService) CompleteStructured(
	ctx context.Context,
	req llm.StructuredRequest,
) (json.RawMessage, error) {
	s.calls = append(s.calls, req)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	return json.RawMessage(s.responses[req.SchemaName]), nil
}

func (s *stubService) Configure(llm.Config) error { return nil }

func TestGenerateSQL(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"text_to_sql": `{"sql_query": "SELECT city_name FROM city_stats ORDER BY population DESC LIMIT 1"}`,
	}}
	gen := NewGenerator(service, 0)

	sql, err := gen.GenerateSQL(context.Background(),
		"which city has the biggest population?", "Table city_stats ...")
	require.NoError(t, err)
	assert.Contains(t, sql, "city_stats")

	require.Len(t, service.calls, 1)
	assert.Equal(t, "text_to_sql", service.calls[0].SchemaName)
	assert.Contains(t, service.calls[0].Prompt, "which city has the biggest population?")
}

func TestGenerateSQLEmptyResult(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"text_to_sql": `{"sql_query": "  "}`,
	}}
	gen := NewGenerator(service, 0)

	_, err := gen.GenerateSQL(context.Background(), "q", "ctx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeneration))
	assert.True(t, stderrors.Is(err, ErrSchemaValidation))
}

func TestGenerateSQLMalformedOutput(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"text_to_sql": `this is not json at all`,
	}}
	gen := NewGenerator(service, 0)

	_, err := gen.GenerateSQL(context.Background(), "q", "ctx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeneration))
	assert.True(t, stderrors.Is(err, ErrSchemaValidation))
}

func TestGenerateSQLFencedOutput(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"text_to_sql": "```json\n{\"sql_query\": \"SELECT 1\"}\n```",
	}}
	gen := NewGenerator(service, 0)

	sql, err := gen.GenerateSQL(context.Background(), "q", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
}

func TestGenerateUpstreamError(t *testing.T) {
	service := &stubService{err: stderrors.New("connection refused")}
	gen := NewGenerator(service, 0)

	_, err := gen.GenerateSQL(context.Background(), "q", "ctx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeneration))
	assert.True(t, stderrors.Is(err, ErrUpstream))
}

func TestGenerateModelTimeout(t *testing.T) {
	service := &stubService{
		delay:     time.Second,
		responses: map[string]string{"text_to_sql": `{"sql_query": "SELECT 1"}`},
	}
	gen := NewGenerator(service, 10*time.Millisecond)

	_, err := gen.GenerateSQL(context.Background(), "q", "ctx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeGeneration))
	assert.True(t, stderrors.Is(err, ErrModelTimeout))
}

func TestGenerateNoRetries(t *testing.T) {
	service := &stubService{err: stderrors.New("boom")}
	gen := NewGenerator(service, 0)

	_, _ = gen.GenerateSQL(context.Background(), "q", "ctx")
	assert.Len(t, service.calls, 1)
}

func TestOptimizeSQL(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"optimize_sql": `{"optimized_query": "SELECT city_name FROM city_stats", "optimization_explanation": "dropped unused columns"}`,
	}}
	gen := NewGenerator(service, 0)

	result, err := gen.OptimizeSQL(context.Background(), "SELECT * FROM city_stats", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "SELECT city_name FROM city_stats", result.OptimizedQuery)
	assert.Equal(t, "dropped unused columns", result.OptimizationExplanation)
}

func TestExplainSQL(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"explain_sql": `{"sql_query_explanation": "counts the cities"}`,
	}}
	gen := NewGenerator(service, 0)

	result, err := gen.ExplainSQL(context.Background(), "SELECT count(*) FROM city_stats", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "counts the cities", result.SQLQueryExplanation)
}

func TestFixSQL(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"fix_sql": `{"fixed_sql_query": "SELECT 1", "fix_explanation": "missing semicolon"}`,
	}}
	gen := NewGenerator(service, 0)

	result, err := gen.FixSQL(context.Background(), "SELEC 1", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.FixedSQLQuery)
}

func TestSynthesize(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"synthesize_response": `{"natural_language_response": "Tokyo has the biggest population."}`,
	}}
	gen := NewGenerator(service, 0)

	result, err := gen.Synthesize(context.Background(),
		"which city has the biggest population?",
		"SELECT city_name FROM city_stats ORDER BY population DESC LIMIT 1",
		`[{"city_name": "Tokyo"}]`)
	require.NoError(t, err)
	assert.Equal(t, "Tokyo has the biggest population.", result.NaturalLanguageResponse)
}

func TestGenerateSchemaSummary(t *testing.T) {
	service := &stubService{responses: map[string]string{
		"summarize_schema": `{"schema_summary": "Per-city population statistics."}`,
	}}
	gen := NewGenerator(service, 0)

	summary, err := gen.GenerateSchemaSummary(context.Background(),
		`CREATE TABLE IF NOT EXISTS "public"."city_stats" ("population" integer)`)
	require.NoError(t, err)
	assert.Equal(t, "Per-city population statistics.", summary)

	require.Len(t, service.calls, 1)
	assert.Equal(t, "summarize_schema", service.calls[0].SchemaName)
}
