package workflow

import (
	"github.com/ragsql/ragsql/internal/prompt"
	"github.com/ragsql/ragsql/internal/types"
)

// StartEvent opens a run: the user's question, the requested task and, for
// the SQL-rework tasks, the SQL to work on
type StartEvent struct {
	Question string
	Task     prompt.Task
	SQL      string
}

// TableRetrieveEvent carries the ranked table context into generation
type TableRetrieveEvent struct {
	Question     string
	TableContext string
	Tables       types.RetrievalResult
}

// TextToSQLEvent carries the generated SQL into execution
type TextToSQLEvent struct {
	Question string
	SQL      string
}

// FinalResult is the terminal event of every successful run
type FinalResult struct {
	Task       prompt.Task              `json:"task"`
	SQLQuery   string                   `json:"sql_query"`
	Response   string                   `json:"response"`
	TableNames []string                 `json:"table_names,omitempty"`
	Rows       []map[string]interface{} `json:"rows,omitempty"`
}
