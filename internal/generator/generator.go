// Package generator invokes the language model with a prompt strategy and
// returns a validated, typed result. The call pattern is identical for every
// task: format the prompt, request output conforming to the strategy's
// schema, parse and validate the raw JSON. Only the strategy varies.
package generator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/llm"
	"github.com/ragsql/ragsql/internal/prompt"
)

// Sentinel causes distinguishing why a generation failed. All are wrapped in
// an errors.ErrTypeGeneration error; match with stdlib errors.Is.
var (
	ErrModelTimeout     = stderrors.New("model call timed out")
	ErrSchemaValidation = stderrors.New("model output failed schema validation")
	ErrUpstream         = stderrors.New("model provider call failed")
)

// DefaultCallTimeout bounds a single model call when none is configured.
const DefaultCallTimeout = 25 * time.Second

// TextToSQLResult is the typed output of the text_to_sql task
type TextToSQLResult struct {
	SQLQuery string `json:"sql_query"`
}

// OptimizeResult is the typed output of the optimize_sql task
type OptimizeResult struct {
	OptimizedQuery          string `json:"optimized_query"`
	OptimizationExplanation string `json:"optimization_explanation"`
}

// ExplainResult is the typed output of the explain_sql task
type ExplainResult struct {
	SQLQueryExplanation string `json:"sql_query_explanation"`
}

// FixResult is the typed output of the fix_sql task
type FixResult struct {
	FixedSQLQuery  string `json:"fixed_sql_query"`
	FixExplanation string `json:"fix_explanation"`
}

// SynthesisResult is the typed output of the synthesize_response task
type SynthesisResult struct {
	NaturalLanguageResponse string `json:"natural_language_response"`
}

// SchemaSummary is the typed output of the summarize_schema task
type SchemaSummary struct {
	SchemaSummary string `json:"schema_summary"`
}

// Generator sends prompts to the language model with a structured-output
// contract. It performs no retries; callers decide.
type Generator struct {
	service     llm.Service
	callTimeout time.Duration
}

// NewGenerator creates a generator using the given LLM service
func NewGenerator(service llm.Service, callTimeout time.Duration) *Generator {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}

	return &Generator{
		service:     service,
		callTimeout: callTimeout,
	}
}

// GenerateSQL runs the text_to_sql strategy for a question over the given
// schema context and returns the generated SQL string
func (g *Generator) GenerateSQL(ctx context.Context, question, contextText string) (string, error) {
	var result TextToSQLResult

	args := prompt.Args{Question: question, Context: contextText}
	if err := g.generate(ctx, prompt.ForTask(prompt.TaskTextToSQL), args, &result); err != nil {
		return "", err
	}

	if strings.TrimSpace(result.SQLQuery) == "" {
		return "", g.validationError(prompt.TaskTextToSQL, "empty sql_query")
	}

	return result.SQLQuery, nil
}

// OptimizeSQL runs the optimize_sql strategy on an already-given SQL string
func (g *Generator) OptimizeSQL(ctx context.Context, sql, contextText string) (*OptimizeResult, error) {
	var result OptimizeResult

	args := prompt.Args{SQL: sql, Context: contextText}
	if err := g.generate(ctx, prompt.ForTask(prompt.TaskOptimizeSQL), args, &result); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.OptimizedQuery) == "" {
		return nil, g.validationError(prompt.TaskOptimizeSQL, "empty optimized_query")
	}

	return &result, nil
}

// ExplainSQL runs the explain_sql strategy on an already-given SQL string
func (g *Generator) ExplainSQL(ctx context.Context, sql, contextText string) (*ExplainResult, error) {
	var result ExplainResult

	args := prompt.Args{SQL: sql, Context: contextText}
	if err := g.generate(ctx, prompt.ForTask(prompt.TaskExplainSQL), args, &result); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.SQLQueryExplanation) == "" {
		return nil, g.validationError(prompt.TaskExplainSQL, "empty sql_query_explanation")
	}

	return &result, nil
}

// FixSQL runs the fix_sql strategy on an already-given SQL string
func (g *Generator) FixSQL(ctx context.Context, sql, contextText string) (*FixResult, error) {
	var result FixResult

	args := prompt.Args{SQL: sql, Context: contextText}
	if err := g.generate(ctx, prompt.ForTask(prompt.TaskFixSQL), args, &result); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.FixedSQLQuery) == "" {
		return nil, g.validationError(prompt.TaskFixSQL, "empty fixed_sql_query")
	}

	return &result, nil
}

// Synthesize runs the synthesize_response strategy over the executed query's
// rows and returns the natural-language answer
func (g *Generator) Synthesize(
	ctx context.Context,
	question, sql, rows string,
) (*SynthesisResult, error) {
	var result SynthesisResult

	args := prompt.Args{Question: question, SQL: sql, Rows: rows}
	if err := g.generate(ctx, prompt.ForTask(prompt.TaskSynthesize), args, &result); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.NaturalLanguageResponse) == "" {
		return nil, g.validationError(prompt.TaskSynthesize, "empty natural_language_response")
	}

	return &result, nil
}

// GenerateSchemaSummary produces a short caption of a table schema, used
// when registering a table in minimal mode
func (g *Generator) GenerateSchemaSummary(ctx context.Context, schemaText string) (string, error) {
	var result SchemaSummary

	args := prompt.Args{Context: schemaText}
	if err := g.generate(ctx, prompt.ForTask(prompt.TaskSchemaSummary), args, &result); err != nil {
		return "", err
	}

	if strings.TrimSpace(result.SchemaSummary) == "" {
		return "", g.validationError(prompt.TaskSchemaSummary, "empty schema_summary")
	}

	return result.SchemaSummary, nil
}

// generate is the shared call pattern: build prompt, call the model with the
// strategy's output contract, parse the raw JSON into the typed result
func (g *Generator) generate(
	ctx context.Context,
	strategy prompt.Strategy,
	args prompt.Args,
	out interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	raw, err := g.service.CompleteStructured(ctx, llm.StructuredRequest{
		Prompt:     strategy.BuildPrompt(args),
		SchemaName: strategy.OutputKind(),
		Schema:     strategy.OutputSchema(),
	})
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrapf(
				fmt.Errorf("%w: %w", ErrModelTimeout, err),
				errors.ErrTypeGeneration,
				"%s generation timed out after %s", strategy.Task(), g.callTimeout,
			)
		}

		return errors.Wrapf(
			fmt.Errorf("%w: %w", ErrUpstream, err),
			errors.ErrTypeGeneration,
			"%s generation failed", strategy.Task(),
		)
	}

	if err := unmarshalStrict(raw, out); err != nil {
		return errors.Wrapf(
			fmt.Errorf("%w: %w", ErrSchemaValidation, err),
			errors.ErrTypeGeneration,
			"%s output did not conform to its schema", strategy.Task(),
		)
	}

	return nil
}

func (g *Generator) validationError(task prompt.Task, detail string) error {
	return errors.Wrapf(
		fmt.Errorf("%w: %s", ErrSchemaValidation, detail),
		errors.ErrTypeGeneration,
		"%s output did not conform to its schema", task,
	)
}
