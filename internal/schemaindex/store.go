// Package schemaindex persists and serves the embedded documents that
// describe each registered table's schema, scoped per logical database.
// The relational registry is the authoritative table list; this index is a
// derived projection kept eventually consistent by best-effort writes and
// an explicit rebuild operation.
package schemaindex

import (
	"context"
	"time"

	"github.com/ragsql/ragsql/internal/types"
)

// KindSchemaDefinition tags every indexed node
const KindSchemaDefinition = "schema_definition"

// DefaultTopK is the number of nearest nodes a retrieval returns
const DefaultTopK = 3

// Node is the embedded-document form of a table descriptor
type Node struct {
	ID        string
	Scope     string
	TableName string
	Kind      string
	Summary   string
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Document is the input to an index write: the table identity plus the text
// that gets embedded and stored
type Document struct {
	TableName string
	Text      string
	Summary   string
}

// Embedder generates the vectors stored alongside each node. Satisfied by
// embedding.Manager.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Store defines the schema index operations
type Store interface {
	Initialize(ctx context.Context) error

	// AddTable embeds the document text and inserts one node for the table,
	// replacing any node already present for it. One node per registered
	// table per scope.
	AddTable(ctx context.Context, scope string, doc Document) error

	// DeleteTable removes all nodes tagged with the table name
	DeleteTable(ctx context.Context, scope, tableName string) error

	// Retrieve embeds the question and returns the top-k nearest nodes by
	// cosine similarity, ranked best first
	Retrieve(ctx context.Context, scope, question string, topK int) (types.RetrievalResult, error)

	// Rebuild replaces the scope's collection with one node per document,
	// restoring convergence with the authoritative table list. Not safe to
	// run concurrently with AddTable on the same scope; callers serialize
	// mutations per scope.
	Rebuild(ctx context.Context, scope string, docs []Document) error

	// ListTables returns the table names currently indexed for a scope
	ListTables(ctx context.Context, scope string) ([]string, error)

	Close() error
}
