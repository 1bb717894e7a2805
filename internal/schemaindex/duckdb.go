package schemaindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/ragsql/ragsql/internal/config"
	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/types"
)

// DuckDBStore implements the Store interface using an embedded DuckDB file.
// Similarity is computed in-process over the scope's nodes; per-database
// collections are small (one node per table), so a scan is adequate.
type DuckDBStore struct {
	db           *sql.DB
	path         string
	embedder     Embedder
	queryTimeout time.Duration
}

// NewDuckDBStore creates a schema index store backed by cfg.Path. Pool
// sizing and the per-operation query timeout come from cfg.
func NewDuckDBStore(cfg config.IndexConfig, embedder Embedder) (*DuckDBStore, error) {
	// Ensure the directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	configurePool(db, cfg)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping index store: %w", err)
	}

	return &DuckDBStore{
		db:           db,
		path:         cfg.Path,
		embedder:     embedder,
		queryTimeout: cfg.QueryTimeoutDuration(),
	}, nil
}

func configurePool(db *sql.DB, cfg config.IndexConfig) {
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
}

// opContext bounds one store operation by the configured query timeout
func (s *DuckDBStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.queryTimeout)
}

// Initialize creates the index schema using migrations
func (s *DuckDBStore) Initialize(ctx context.Context) error {
	return NewMigrationManager(s.db).MigrateUp(ctx)
}

// AddTable embeds the document and inserts one node for the table. Any node
// already present for the table is replaced in the same transaction, so a
// re-registration cannot leave duplicates.
func (s *DuckDBStore) AddTable(ctx context.Context, scope string, doc Document) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	embedding, err := s.embedder.GenerateEmbedding(ctx, doc.Text)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeIndexUnavailable,
			"failed to embed schema document")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_nodes WHERE scope = ? AND table_name = ?`,
		scope, doc.TableName); err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	if err := insertNode(ctx, tx, scope, doc, embedding); err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	return nil
}

// DeleteTable removes all nodes tagged with the table name
func (s *DuckDBStore) DeleteTable(ctx context.Context, scope, tableName string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM schema_nodes WHERE scope = ? AND table_name = ?`,
		scope, tableName)
	if err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	return nil
}

// Retrieve embeds the question and returns the top-k nearest nodes
func (s *DuckDBStore) Retrieve(
	ctx context.Context,
	scope, question string,
	topK int,
) (types.RetrievalResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	nodes, err := s.loadNodes(ctx, scope)
	if err != nil {
		return nil, err
	}

	if len(nodes) == 0 {
		return nil, errors.Newf(errors.ErrTypeNotFound,
			"no schema index exists for %q: no tables registered", scope).
			WithSuggestion("Register at least one table before asking questions")
	}

	queryEmbedding, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeIndexUnavailable,
			"failed to embed question")
	}

	results := make(types.RetrievalResult, 0, len(nodes))
	for _, node := range nodes {
		results = append(results, types.RetrievedNode{
			TableName: node.TableName,
			Text:      node.Text,
			Summary:   node.Summary,
			Score:     cosineSimilarity(queryEmbedding, node.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Rebuild replaces the scope's collection with one node per document
func (s *DuckDBStore) Rebuild(ctx context.Context, scope string, docs []Document) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	embeddings := make([][]float32, len(docs))

	for i, doc := range docs {
		embedding, err := s.embedder.GenerateEmbedding(ctx, doc.Text)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTypeIndexUnavailable,
				"failed to embed schema document for %q", doc.TableName)
		}

		embeddings[i] = embedding
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_nodes WHERE scope = ?`, scope); err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	for i, doc := range docs {
		if err := insertNode(ctx, tx, scope, doc, embeddings[i]); err != nil {
			return errors.NewIndexUnavailableError(scope, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIndexUnavailableError(scope, err)
	}

	return nil
}

// ListTables returns the table names currently indexed for a scope
func (s *DuckDBStore) ListTables(ctx context.Context, scope string) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM schema_nodes WHERE scope = ? ORDER BY table_name`, scope)
	if err != nil {
		return nil, errors.NewIndexUnavailableError(scope, err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewIndexUnavailableError(scope, err)
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

// Close closes the backing store
func (s *DuckDBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func insertNode(ctx context.Context, tx *sql.Tx, scope string, doc Document, embedding []float32) error {
	// DuckDB has no native float vector binding through database/sql;
	// embeddings round-trip as JSON text
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO schema_nodes (id, scope, table_name, kind, summary, text, embedding)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), scope, doc.TableName, KindSchemaDefinition,
		doc.Summary, doc.Text, string(embeddingJSON))

	return err
}

func (s *DuckDBStore) loadNodes(ctx context.Context, scope string) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, scope, table_name, kind, summary, text, embedding
	FROM schema_nodes WHERE scope = ?`, scope)
	if err != nil {
		return nil, errors.NewIndexUnavailableError(scope, err)
	}
	defer rows.Close()

	var nodes []Node

	for rows.Next() {
		var (
			node          Node
			embeddingJSON string
		)

		if err := rows.Scan(&node.ID, &node.Scope, &node.TableName, &node.Kind,
			&node.Summary, &node.Text, &embeddingJSON); err != nil {
			return nil, errors.NewIndexUnavailableError(scope, err)
		}

		if err := json.Unmarshal([]byte(embeddingJSON), &node.Embedding); err != nil {
			return nil, errors.Wrapf(err, errors.ErrTypeInternal,
				"corrupt embedding for node %s", node.ID)
		}

		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
