// Package workflow drives a question through retrieval, generation,
// execution and synthesis as a strictly sequential event chain:
// StartEvent -> TableRetrieveEvent -> TextToSQLEvent -> FinalResult.
// The rework tasks (optimize, explain, fix) stop after generation.
package workflow

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/generator"
	"github.com/ragsql/ragsql/internal/logging"
	"github.com/ragsql/ragsql/internal/prompt"
	"github.com/ragsql/ragsql/internal/retriever"
	"github.com/ragsql/ragsql/internal/types"
)

// DefaultRunTimeout bounds a whole run, all model and database calls
// included
const DefaultRunTimeout = 30 * time.Second

// ContextBuilder retrieves ranked tables and renders them as model context.
// Satisfied by retriever.Retriever.
type ContextBuilder interface {
	BuildContext(
		ctx context.Context,
		scope, question string,
		mode retriever.Mode,
		inspector retriever.TableInspector,
	) (string, types.RetrievalResult, error)
}

// SQLGenerator is the generation surface the engine drives. Satisfied by
// generator.Generator.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question, contextText string) (string, error)
	OptimizeSQL(ctx context.Context, sql, contextText string) (*generator.OptimizeResult, error)
	ExplainSQL(ctx context.Context, sql, contextText string) (*generator.ExplainResult, error)
	FixSQL(ctx context.Context, sql, contextText string) (*generator.FixResult, error)
	Synthesize(ctx context.Context, question, sql, rows string) (*generator.SynthesisResult, error)
}

// QueryExecutor runs generated SQL against the target database. Satisfied by
// target.Executor.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlText string) ([]map[string]interface{}, error)
}

// Request is one caller-supplied run: a task, a question, and for the
// rework tasks the SQL to work on
type Request struct {
	Task     string
	Question string
	SQL      string
}

// Engine executes requests against one registered database scope
type Engine struct {
	contextBuilder ContextBuilder
	generator      SQLGenerator
	executor       QueryExecutor
	inspector      retriever.TableInspector
	mode           retriever.Mode
	runTimeout     time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithRunTimeout overrides the whole-run timeout
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.runTimeout = d
		}
	}
}

// WithMode selects the retrieval mode (complete by default)
func WithMode(mode retriever.Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithInspector supplies the live-table inspector complete mode needs.
// target.Executor implements both QueryExecutor and the inspector.
func WithInspector(inspector retriever.TableInspector) Option {
	return func(e *Engine) {
		e.inspector = inspector
	}
}

// NewEngine wires the pipeline stages together
func NewEngine(cb ContextBuilder, gen SQLGenerator, exec QueryExecutor, opts ...Option) *Engine {
	e := &Engine{
		contextBuilder: cb,
		generator:      gen,
		executor:       exec,
		mode:           retriever.ModeComplete,
		runTimeout:     DefaultRunTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run drives one request through the event chain for the given scope
func (e *Engine) Run(ctx context.Context, scope string, req Request) (*FinalResult, error) {
	// Validate the task before any outbound call. Synthesis and schema
	// summaries are internal stages, not caller-facing entry points.
	task, err := prompt.ParseTask(req.Task)
	if err != nil {
		return nil, err
	}

	switch task {
	case prompt.TaskTextToSQL, prompt.TaskOptimizeSQL, prompt.TaskExplainSQL, prompt.TaskFixSQL:
	default:
		return nil, errors.NewUnknownPromptError(req.Task)
	}

	if task != prompt.TaskTextToSQL && req.SQL == "" {
		return nil, errors.Newf(errors.ErrTypeValidation,
			"%s requires a SQL statement to work on", task)
	}

	ctx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	start := StartEvent{Question: req.Question, Task: task, SQL: req.SQL}

	result, err := e.run(ctx, scope, start)
	if err != nil {
		return nil, e.mapTimeout(ctx, err)
	}

	return result, nil
}

func (e *Engine) run(ctx context.Context, scope string, start StartEvent) (*FinalResult, error) {
	retrieved, err := e.retrieveTables(ctx, scope, start)
	if err != nil {
		return nil, err
	}

	logging.WithFields(map[string]interface{}{
		"scope":  scope,
		"task":   string(start.Task),
		"tables": retrieved.Tables.TableNames(),
	}).Debug("Retrieved table context")

	switch start.Task {
	case prompt.TaskOptimizeSQL:
		out, err := e.generator.OptimizeSQL(ctx, start.SQL, retrieved.TableContext)
		if err != nil {
			return nil, err
		}

		return &FinalResult{
			Task:       start.Task,
			SQLQuery:   out.OptimizedQuery,
			Response:   out.OptimizationExplanation,
			TableNames: retrieved.Tables.TableNames(),
		}, nil

	case prompt.TaskExplainSQL:
		out, err := e.generator.ExplainSQL(ctx, start.SQL, retrieved.TableContext)
		if err != nil {
			return nil, err
		}

		return &FinalResult{
			Task:       start.Task,
			SQLQuery:   start.SQL,
			Response:   out.SQLQueryExplanation,
			TableNames: retrieved.Tables.TableNames(),
		}, nil

	case prompt.TaskFixSQL:
		out, err := e.generator.FixSQL(ctx, start.SQL, retrieved.TableContext)
		if err != nil {
			return nil, err
		}

		return &FinalResult{
			Task:       start.Task,
			SQLQuery:   out.FixedSQLQuery,
			Response:   out.FixExplanation,
			TableNames: retrieved.Tables.TableNames(),
		}, nil
	}

	sqlEvent, err := e.generateSQL(ctx, retrieved)
	if err != nil {
		return nil, err
	}

	return e.executeAndSynthesize(ctx, retrieved, sqlEvent)
}

// retrieveTables is the StartEvent -> TableRetrieveEvent transition. An
// empty retrieval is not an error; generation proceeds with empty context.
func (e *Engine) retrieveTables(ctx context.Context, scope string, start StartEvent) (TableRetrieveEvent, error) {
	contextText, tables, err := e.contextBuilder.BuildContext(
		ctx, scope, start.Question, e.mode, e.inspector)
	if err != nil {
		return TableRetrieveEvent{}, err
	}

	return TableRetrieveEvent{
		Question:     start.Question,
		TableContext: contextText,
		Tables:       tables,
	}, nil
}

// generateSQL is the TableRetrieveEvent -> TextToSQLEvent transition
func (e *Engine) generateSQL(ctx context.Context, ev TableRetrieveEvent) (TextToSQLEvent, error) {
	sqlText, err := e.generator.GenerateSQL(ctx, ev.Question, ev.TableContext)
	if err != nil {
		return TextToSQLEvent{}, err
	}

	return TextToSQLEvent{Question: ev.Question, SQL: sqlText}, nil
}

// executeAndSynthesize runs the generated SQL and turns the rows into a
// natural-language answer. An execution failure is terminal; no synthesis
// call is made for a query that did not run.
func (e *Engine) executeAndSynthesize(
	ctx context.Context,
	retrieved TableRetrieveEvent,
	ev TextToSQLEvent,
) (*FinalResult, error) {
	rows, err := e.executor.Execute(ctx, ev.SQL)
	if err != nil {
		return nil, err
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal,
			"failed to encode result rows")
	}

	synthesis, err := e.generator.Synthesize(ctx, ev.Question, ev.SQL, string(rowsJSON))
	if err != nil {
		return nil, err
	}

	return &FinalResult{
		Task:       prompt.TaskTextToSQL,
		SQLQuery:   ev.SQL,
		Response:   synthesis.NaturalLanguageResponse,
		TableNames: retrieved.Tables.TableNames(),
		Rows:       rows,
	}, nil
}

// mapTimeout reports a run that outlived the whole-run budget as a timeout
// error rather than whichever stage error the deadline surfaced through
func (e *Engine) mapTimeout(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(err, errors.ErrTypeTimeout,
			"workflow run timed out after %s", e.runTimeout).
			WithSuggestion("Simplify the question or raise the workflow timeout")
	}

	return err
}
