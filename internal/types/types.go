package types

import "fmt"

// DatabaseConnection holds the credentials needed to reach a registered
// target database. It is constructed per request from stored credentials
// plus the caller-supplied password and is never persisted in plaintext.
type DatabaseConnection struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	Name     string `json:"name"`
}

// DSN returns the PostgreSQL connection string for this connection.
func (c DatabaseConnection) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.Username, c.Password, c.Host, c.Port, c.Name)
}

// Scope returns the logical identifier under which tables, credentials and
// the vector collection for this database are namespaced.
func (c DatabaseConnection) Scope() string {
	return c.Name
}

// TableDescriptor describes one registered table. Summary is optional
// free text; TableName is unique within a database's registered set.
// SchemaText holds the rendered CREATE TABLE document for minimal-mode
// registrations so an index rebuild can restore it verbatim.
type TableDescriptor struct {
	TableName  string `json:"table_name"`
	Summary    string `json:"summary,omitempty"`
	SchemaText string `json:"schema_text,omitempty"`
}

// ColumnSpec is one row of a client-supplied column catalog used by
// minimal-mode registration.
type ColumnSpec struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
	ColumnType string `json:"column_type"`
}

// RetrievedNode is one ranked hit from the schema index: the stored document
// text plus its table identity and similarity score.
type RetrievedNode struct {
	TableName string  `json:"table_name"`
	Text      string  `json:"text"`
	Summary   string  `json:"summary,omitempty"`
	Score     float64 `json:"score"`
}

// RetrievalResult is an ordered sequence of retrieved nodes, ranked by
// similarity, at most top-k long.
type RetrievalResult []RetrievedNode

// TableNames returns the table names of the result in rank order.
func (r RetrievalResult) TableNames() []string {
	names := make([]string, 0, len(r))
	for _, n := range r {
		names = append(names, n.TableName)
	}

	return names
}
