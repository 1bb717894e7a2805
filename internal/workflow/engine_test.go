package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/prompt"
	"github.com/ragsql/ragsql/internal/testutil"
	"github.com/ragsql/ragsql/internal/types"
)

func cityTables() types.RetrievalResult {
	return types.RetrievalResult{
		{TableName: "city_stats", Text: "city_stats", Score: 0.9},
	}
}

func TestRunTextToSQL(t *testing.T) {
	cb := testutil.NewMockContextBuilder(
		testutil.WithTableContext("Table 'city_stats' has columns: population (integer).", cityTables()))
	gen := testutil.NewMockGenerator(
		testutil.WithGeneratedSQL("SELECT city_name FROM city_stats ORDER BY population DESC LIMIT 1"),
		testutil.WithResponse("Tokyo has the highest population."))
	exec := testutil.NewMockExecutor(
		testutil.WithRows([]map[string]interface{}{{"city_name": "Tokyo"}}))

	engine := NewEngine(cb, gen, exec)

	result, err := engine.Run(context.Background(), "cities", Request{
		Task:     "text_to_sql",
		Question: "Which city has the highest population?",
	})
	require.NoError(t, err)

	assert.Equal(t, prompt.TaskTextToSQL, result.Task)
	assert.Equal(t, "SELECT city_name FROM city_stats ORDER BY population DESC LIMIT 1", result.SQLQuery)
	assert.Equal(t, "Tokyo has the highest population.", result.Response)
	assert.Equal(t, []string{"city_stats"}, result.TableNames)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Tokyo", result.Rows[0]["city_name"])

	// terminal shape: exactly two model calls, one execution
	assert.Equal(t, 1, gen.GetCallCount("GenerateSQL"))
	assert.Equal(t, 1, gen.GetCallCount("Synthesize"))
	assert.Equal(t, 2, gen.TotalCalls())
	assert.Equal(t, 1, exec.GetCallCount("Execute"))
	assert.Equal(t, 1, cb.GetCallCount("BuildContext"))
}

func TestRunUnknownTaskFailsFast(t *testing.T) {
	cb := testutil.NewMockContextBuilder()
	gen := testutil.NewMockGenerator()
	exec := testutil.NewMockExecutor()

	engine := NewEngine(cb, gen, exec)

	_, err := engine.Run(context.Background(), "cities", Request{
		Task:     "frobnicate_sql",
		Question: "q",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnknownPrompt))

	// zero outbound calls of any kind
	assert.Equal(t, 0, cb.GetCallCount("BuildContext"))
	assert.Equal(t, 0, gen.TotalCalls())
	assert.Equal(t, 0, exec.GetCallCount("Execute"))
}

func TestRunInternalTasksRejectedAtEntry(t *testing.T) {
	for _, task := range []string{"synthesize_response", "summarize_schema"} {
		t.Run(task, func(t *testing.T) {
			gen := testutil.NewMockGenerator()
			engine := NewEngine(testutil.NewMockContextBuilder(), gen, testutil.NewMockExecutor())

			_, err := engine.Run(context.Background(), "cities", Request{Task: task, Question: "q"})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeUnknownPrompt))
			assert.Equal(t, 0, gen.TotalCalls())
		})
	}
}

func TestRunExplainShortCircuits(t *testing.T) {
	cb := testutil.NewMockContextBuilder(
		testutil.WithTableContext("ctx", cityTables()))
	gen := testutil.NewMockGenerator(
		testutil.WithResponse("This query counts cities."))
	exec := testutil.NewMockExecutor()

	engine := NewEngine(cb, gen, exec)

	result, err := engine.Run(context.Background(), "cities", Request{
		Task: "explain_sql",
		SQL:  "SELECT COUNT(*) FROM city_stats",
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM city_stats", result.SQLQuery)
	assert.Equal(t, "This query counts cities.", result.Response)

	// generation is terminal for explain: the executor is never touched
	assert.Equal(t, 1, gen.GetCallCount("ExplainSQL"))
	assert.Equal(t, 1, gen.TotalCalls())
	assert.Equal(t, 0, exec.GetCallCount("Execute"))
	assert.Empty(t, result.Rows)
}

func TestRunOptimizeReturnsRewrittenSQL(t *testing.T) {
	gen := testutil.NewMockGenerator(
		testutil.WithGeneratedSQL("SELECT city_name FROM city_stats WHERE population > 1000000"),
		testutil.WithResponse("Added a predicate to use the population index."))
	exec := testutil.NewMockExecutor()

	engine := NewEngine(testutil.NewMockContextBuilder(), gen, exec)

	result, err := engine.Run(context.Background(), "cities", Request{
		Task: "optimize_sql",
		SQL:  "SELECT * FROM city_stats",
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT city_name FROM city_stats WHERE population > 1000000", result.SQLQuery)
	assert.Equal(t, "Added a predicate to use the population index.", result.Response)
	assert.Equal(t, 0, exec.GetCallCount("Execute"))
}

func TestRunFixReturnsRepairedSQL(t *testing.T) {
	gen := testutil.NewMockGenerator(
		testutil.WithGeneratedSQL("SELECT city_name FROM city_stats"),
		testutil.WithResponse("Corrected the misspelled table name."))

	engine := NewEngine(testutil.NewMockContextBuilder(), gen, testutil.NewMockExecutor())

	result, err := engine.Run(context.Background(), "cities", Request{
		Task: "fix_sql",
		SQL:  "SELECT city_name FROM citystats",
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT city_name FROM city_stats", result.SQLQuery)
	assert.Equal(t, 1, gen.GetCallCount("FixSQL"))
}

func TestRunReworkTasksRequireSQL(t *testing.T) {
	gen := testutil.NewMockGenerator()
	engine := NewEngine(testutil.NewMockContextBuilder(), gen, testutil.NewMockExecutor())

	_, err := engine.Run(context.Background(), "cities", Request{Task: "optimize_sql"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Equal(t, 0, gen.TotalCalls())
}

func TestRunExecutionErrorIsTerminal(t *testing.T) {
	cb := testutil.NewMockContextBuilder(
		testutil.WithTableContext("ctx", cityTables()))
	gen := testutil.NewMockGenerator()
	exec := testutil.NewMockExecutor(
		testutil.WithExecuteError(errors.New(errors.ErrTypeExecution,
			"generated SQL failed against target database")))

	engine := NewEngine(cb, gen, exec)

	_, err := engine.Run(context.Background(), "cities", Request{
		Task:     "text_to_sql",
		Question: "q",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeExecution))

	// no synthesis attempt for a query that did not run
	assert.Equal(t, 1, gen.GetCallCount("GenerateSQL"))
	assert.Equal(t, 0, gen.GetCallCount("Synthesize"))
}

func TestRunEmptyRetrievalProceedsWithEmptyContext(t *testing.T) {
	cb := testutil.NewMockContextBuilder() // no tables, empty context
	gen := testutil.NewMockGenerator(testutil.WithResponse("No data available."))
	exec := testutil.NewMockExecutor()

	engine := NewEngine(cb, gen, exec)

	result, err := engine.Run(context.Background(), "cities", Request{
		Task:     "text_to_sql",
		Question: "q",
	})
	require.NoError(t, err)

	assert.Empty(t, result.TableNames)
	assert.Equal(t, 1, gen.GetCallCount("GenerateSQL"))
}

func TestRunRetrieveErrorPropagates(t *testing.T) {
	cb := testutil.NewMockContextBuilder(
		testutil.WithRetrieveError(errors.New(errors.ErrTypeNotFound, "no schema index exists")))
	gen := testutil.NewMockGenerator()

	engine := NewEngine(cb, gen, testutil.NewMockExecutor())

	_, err := engine.Run(context.Background(), "cities", Request{
		Task:     "text_to_sql",
		Question: "q",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.Equal(t, 0, gen.TotalCalls())
}

func TestRunTimesOut(t *testing.T) {
	cb := testutil.NewMockContextBuilder(
		testutil.WithTableContext("ctx", cityTables()))
	gen := &slowGenerator{MockGenerator: testutil.NewMockGenerator(), delay: 50 * time.Millisecond}
	exec := testutil.NewMockExecutor()

	engine := NewEngine(cb, gen, exec, WithRunTimeout(10*time.Millisecond))

	_, err := engine.Run(context.Background(), "cities", Request{
		Task:     "text_to_sql",
		Question: "q",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
}

// slowGenerator delays GenerateSQL past the run deadline
type slowGenerator struct {
	*testutil.MockGenerator
	delay time.Duration
}

func (s *slowGenerator) GenerateSQL(ctx context.Context, question, contextText string) (string, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return s.MockGenerator.GenerateSQL(ctx, question, contextText)
}
