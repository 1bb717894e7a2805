// Package prompt holds the task templates and output contracts for every
// model call the pipeline makes. Each task is one strategy: a template that
// formats the call's inputs into a prompt, plus the JSON schema the model's
// structured output must conform to. The generator is strategy-agnostic;
// callers select a strategy by task and the variability stays here.
package prompt

import (
	"fmt"

	"github.com/ragsql/ragsql/internal/errors"
)

// Task identifies one generation task
type Task string

const (
	TaskTextToSQL     Task = "text_to_sql"
	TaskOptimizeSQL   Task = "optimize_sql"
	TaskExplainSQL    Task = "explain_sql"
	TaskFixSQL        Task = "fix_sql"
	TaskSynthesize    Task = "synthesize_response"
	TaskSchemaSummary Task = "summarize_schema"
)

// ParseTask validates a caller-supplied task mode. Unknown identifiers are
// rejected before any outbound call is made.
func ParseTask(mode string) (Task, error) {
	switch Task(mode) {
	case TaskTextToSQL, TaskOptimizeSQL, TaskExplainSQL, TaskFixSQL,
		TaskSynthesize, TaskSchemaSummary:
		return Task(mode), nil
	default:
		return "", errors.NewUnknownPromptError(mode)
	}
}

// Args carries the inputs a template may reference. Which fields matter
// depends on the task: Question and Context for text_to_sql, SQL for the
// rewrite tasks, Rows for synthesis, Context alone for schema summaries.
type Args struct {
	Question string
	Context  string
	SQL      string
	Rows     string
	Dialect  string
}

// Strategy is one task's template plus its structured-output contract
type Strategy struct {
	task Task
}

// ForTask returns the strategy for a task
func ForTask(task Task) Strategy {
	return Strategy{task: task}
}

// Task returns the task this strategy serves
func (s Strategy) Task() Task {
	return s.task
}

// OutputKind returns the identifier of the expected output shape, used as
// the function/tool name of the structured-output contract
func (s Strategy) OutputKind() string {
	return string(s.task)
}

// BuildPrompt formats the task template with the given arguments
func (s Strategy) BuildPrompt(args Args) string {
	dialect := args.Dialect
	if dialect == "" {
		dialect = "postgresql"
	}

	switch s.task {
	case TaskTextToSQL:
		return fmt.Sprintf(
			"Given an input question, create a syntactically correct %s query to run "+
				"which answers the question. You can order the results by a relevant column "+
				"to return the most interesting examples. Never query for all the columns "+
				"from a table; only select the few columns relevant to the question. "+
				"Pay attention to use only column names that appear in the schema "+
				"description below, and only query tables listed there.\n"+
				"Only use tables listed below.\n"+
				"%s\n\n"+
				"Question: %s\n"+
				"SQLQuery: ",
			dialect, args.Context, args.Question)

	case TaskOptimizeSQL:
		return fmt.Sprintf(
			"Optimize the following SQL query for better performance. "+
				"Return the optimized sql query and an explanation. \n"+
				"Schema Information:\n%s\n"+
				"Database: %s\n"+
				"Query: %s\n"+
				"Answer: \n",
			args.Context, dialect, args.SQL)

	case TaskExplainSQL:
		return fmt.Sprintf(
			"Explain this SQL query in detail; do not return the provided query, "+
				"but only an explanation of what it does. \n"+
				"Schema Information:\n%s\n"+
				"Database: %s\n"+
				"Query: %s\n"+
				"Explanation: \n",
			args.Context, dialect, args.SQL)

	case TaskFixSQL:
		return fmt.Sprintf(
			"Fix the SQL syntax errors in the following query. Answer only with a "+
				"single formatted SQL code block, no additional text. \n"+
				"Schema Information:\n%s\n"+
				"Database: %s\n"+
				"Query: %s\n"+
				"Answer: \n",
			args.Context, dialect, args.SQL)

	case TaskSynthesize:
		return fmt.Sprintf(
			"Given an input question, synthesize a response from the query results.\n"+
				"Query: %s\n"+
				"SQL: %s\n"+
				"SQL Response: %s\n"+
				"Response: ",
			args.Question, args.SQL, args.Rows)

	case TaskSchemaSummary:
		return fmt.Sprintf(
			"Give me a short, concise summary/caption of the table in the following "+
				"table schema. \n"+
				"Schema Information:\n%s\n"+
				"Answer: \n",
			args.Context)

	default:
		return ""
	}
}

// OutputSchema returns the JSON Schema descriptor of the task's expected
// structured output
func (s Strategy) OutputSchema() map[string]interface{} {
	switch s.task {
	case TaskTextToSQL:
		return objectSchema(map[string]string{
			"sql_query": "The generated SQL query answering the question.",
		}, "sql_query")

	case TaskOptimizeSQL:
		return objectSchema(map[string]string{
			"optimized_query":          "The optimized SQL query.",
			"optimization_explanation": "Why the optimized form performs better.",
		}, "optimized_query", "optimization_explanation")

	case TaskExplainSQL:
		return objectSchema(map[string]string{
			"sql_query_explanation": "A detailed explanation of what the query does.",
		}, "sql_query_explanation")

	case TaskFixSQL:
		return objectSchema(map[string]string{
			"fixed_sql_query": "The corrected SQL query.",
			"fix_explanation": "What was wrong and how it was fixed.",
		}, "fixed_sql_query", "fix_explanation")

	case TaskSynthesize:
		return objectSchema(map[string]string{
			"natural_language_response": "A natural-language answer synthesized from the rows.",
		}, "natural_language_response")

	case TaskSchemaSummary:
		return objectSchema(map[string]string{
			"schema_summary": "A short caption describing the table.",
		}, "schema_summary")

	default:
		return objectSchema(nil)
	}
}

func objectSchema(props map[string]string, required ...string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	for name, description := range props {
		properties[name] = map[string]interface{}{
			"type":        "string",
			"description": description,
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}
