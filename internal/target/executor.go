// Package target executes generated SQL against the live target database
// and introspects its schema for complete-mode retrieval. It requires only
// a generic "connect, execute SQL, get rows or error" capability; any
// PostgreSQL-conformant server works.
package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/types"
)

// Executor runs SQL against the target database and reports rows as plain
// structured data usable as model context
type Executor interface {
	// Execute runs sqlText and returns the result rows. Execution errors
	// (syntax, permission, timeout) are surfaced, not swallowed. The SQL
	// shape is not validated; generated SQL is assumed read-oriented by
	// convention, not enforcement.
	Execute(ctx context.Context, sqlText string) ([]map[string]interface{}, error)

	// TableInfo returns a one-line description of a table's live columns
	// and types, used to build complete-mode context
	TableInfo(ctx context.Context, tableName string) (string, error)

	Close()
}

// PgxExecutor implements Executor over a pgx connection pool
type PgxExecutor struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool to the target database
func Connect(ctx context.Context, conn types.DatabaseConnection) (*PgxExecutor, error) {
	pool, err := pgxpool.New(ctx, conn.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to configure connection to %q", conn.Name)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to reach target database %q", conn.Name).
			WithSuggestion("Check the stored host/port and the supplied password")
	}

	return &PgxExecutor{pool: pool}, nil
}

// NewPgxExecutor wraps an existing pool
func NewPgxExecutor(pool *pgxpool.Pool) *PgxExecutor {
	return &PgxExecutor{pool: pool}
}

// Execute runs a SQL statement and returns its rows as field-name keyed maps
func (e *PgxExecutor) Execute(ctx context.Context, sqlText string) ([]map[string]interface{}, error) {
	rows, err := e.pool.Query(ctx, sqlText)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution,
			"generated SQL failed against target database")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeExecution,
				"failed to read result row")
		}

		row := make(map[string]interface{}, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution,
			"generated SQL failed against target database")
	}

	return results, nil
}

// TableInfo queries information_schema for the table's columns and formats
// them as a single descriptive line
func (e *PgxExecutor) TableInfo(ctx context.Context, tableName string) (string, error) {
	schema, table := parseTableName(tableName)

	const query = `
	SELECT column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position`

	rows, err := e.pool.Query(ctx, query, schema, table)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to introspect table %q", tableName)
	}
	defer rows.Close()

	var columns []string

	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return "", errors.Wrapf(err, errors.ErrTypeDatabase,
				"failed to introspect table %q", tableName)
		}

		columns = append(columns, fmt.Sprintf("%s (%s)", name, dataType))
	}

	if err := rows.Err(); err != nil {
		return "", errors.Wrapf(err, errors.ErrTypeDatabase,
			"failed to introspect table %q", tableName)
	}

	if len(columns) == 0 {
		return "", errors.Newf(errors.ErrTypeNotFound,
			"table %q not found in target database", tableName)
	}

	return FormatTableInfo(table, columns), nil
}

// Close releases the connection pool
func (e *PgxExecutor) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}

// FormatTableInfo renders a table's column list as context text
func FormatTableInfo(table string, columns []string) string {
	return fmt.Sprintf("Table '%s' has columns: %s.", table, strings.Join(columns, ", "))
}

// parseTableName splits "schema.table" into its parts, defaulting the
// schema to public
func parseTableName(tableName string) (schema, table string) {
	trimmed := strings.ReplaceAll(tableName, `"`, "")

	if idx := strings.Index(trimmed, "."); idx >= 0 {
		return trimmed[:idx], trimmed[idx+1:]
	}

	return "public", trimmed
}
