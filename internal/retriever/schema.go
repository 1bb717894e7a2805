package retriever

import (
	"fmt"
	"strings"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/types"
)

// TableSchema is one table's generated DDL document, ready for indexing
type TableSchema struct {
	SchemaName string
	TableName  string
	Text       string
}

// GenerateSchemaStatements groups client-supplied column rows by
// (schema, table) and renders one CREATE TABLE document per table.
// Table and column order follow first appearance in the input.
func GenerateSchemaStatements(columns []types.ColumnSpec) ([]TableSchema, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrTypeValidation,
			"minimal-mode registration requires at least one column")
	}

	type tableKey struct {
		schema string
		table  string
	}

	var order []tableKey

	grouped := make(map[tableKey][]types.ColumnSpec)

	for _, col := range columns {
		if col.TableName == "" || col.ColumnName == "" || col.ColumnType == "" {
			return nil, errors.New(errors.ErrTypeValidation,
				"every column row needs a table name, column name and column type")
		}

		schema := col.SchemaName
		if schema == "" {
			schema = "public"
		}

		key := tableKey{schema: schema, table: col.TableName}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}

		grouped[key] = append(grouped[key], col)
	}

	schemas := make([]TableSchema, 0, len(order))

	for _, key := range order {
		var b strings.Builder

		fmt.Fprintf(&b, "CREATE SCHEMA IF NOT EXISTS %q;\n", key.schema)
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q.%q (\n", key.schema, key.table)

		cols := grouped[key]
		for i, col := range cols {
			fmt.Fprintf(&b, "    %q %s", col.ColumnName, col.ColumnType)

			if i < len(cols)-1 {
				b.WriteString(",")
			}

			b.WriteString("\n")
		}

		b.WriteString(");")

		schemas = append(schemas, TableSchema{
			SchemaName: key.schema,
			TableName:  key.table,
			Text:       b.String(),
		})
	}

	return schemas, nil
}
