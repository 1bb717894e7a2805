package retriever

import (
	"context"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/logging"
	"github.com/ragsql/ragsql/internal/registry"
	"github.com/ragsql/ragsql/internal/schemaindex"
	"github.com/ragsql/ragsql/internal/types"
)

// Summarizer captions a schema document for storage alongside the index
// node. Satisfied by generator.Generator.
type Summarizer interface {
	GenerateSchemaSummary(ctx context.Context, schemaText string) (string, error)
}

// Registrar keeps the registration catalog and the schema index in step.
// The catalog write and the index write are separate operations: the catalog
// is authoritative, so a failed index write is logged and reported but does
// not roll back the catalog row. Rebuild restores convergence.
type Registrar struct {
	catalog    registry.Catalog
	store      schemaindex.Store
	summarizer Summarizer
}

// NewRegistrar wires the catalog, index store and summarizer together.
// summarizer may be nil; minimal-mode registrations then index without a
// stored summary.
func NewRegistrar(catalog registry.Catalog, store schemaindex.Store, summarizer Summarizer) *Registrar {
	return &Registrar{catalog: catalog, store: store, summarizer: summarizer}
}

// RegisterTable registers a table in complete mode: the caller supplies a
// name and optional free-text summary, and live column detail is fetched at
// query time
func (r *Registrar) RegisterTable(ctx context.Context, scope string, table types.TableDescriptor) error {
	if err := r.catalog.RegisterTable(ctx, scope, table); err != nil {
		return err
	}

	doc := schemaindex.Document{
		TableName: table.TableName,
		Text:      indexText(table),
		Summary:   table.Summary,
	}

	return r.indexTable(ctx, scope, doc)
}

// RegisterTableMinimal registers tables from a client-supplied column
// catalog: the columns are rendered into CREATE TABLE text, captioned, and
// stored as the schema documents the retriever will replay
func (r *Registrar) RegisterTableMinimal(ctx context.Context, scope string, columns []types.ColumnSpec) error {
	schemas, err := GenerateSchemaStatements(columns)
	if err != nil {
		return err
	}

	for _, schema := range schemas {
		summary := ""

		if r.summarizer != nil {
			summary, err = r.summarizer.GenerateSchemaSummary(ctx, schema.Text)
			if err != nil {
				return err
			}
		}

		table := types.TableDescriptor{
			TableName:  schema.TableName,
			Summary:    summary,
			SchemaText: schema.Text,
		}
		if err := r.catalog.RegisterTable(ctx, scope, table); err != nil {
			return err
		}

		doc := schemaindex.Document{
			TableName: schema.TableName,
			Text:      schema.Text,
			Summary:   summary,
		}

		if err := r.indexTable(ctx, scope, doc); err != nil {
			return err
		}
	}

	return nil
}

// DropTable removes a table from the catalog and deletes its index node
func (r *Registrar) DropTable(ctx context.Context, scope, tableName string) error {
	if err := r.catalog.DeleteTable(ctx, scope, tableName); err != nil {
		return err
	}

	if err := r.store.DeleteTable(ctx, scope, tableName); err != nil {
		logging.WithFields(map[string]interface{}{
			"scope": scope,
			"table": tableName,
			"error": err.Error(),
		}).Warn("Table dropped from catalog but index delete failed; run rebuild-index")

		return err
	}

	return nil
}

// RebuildIndex rebuilds a scope's index collection from the catalog's
// authoritative table list. It is the recovery path when the index has
// drifted from the catalog. Minimal-mode tables replay their stored
// CREATE TABLE text byte for byte.
func (r *Registrar) RebuildIndex(ctx context.Context, scope string) error {
	tables, err := r.catalog.GetRegisteredTables(ctx, scope)
	if err != nil {
		return err
	}

	docs := make([]schemaindex.Document, 0, len(tables))
	for _, table := range tables {
		text := table.SchemaText
		if text == "" {
			text = indexText(table)
		}

		docs = append(docs, schemaindex.Document{
			TableName: table.TableName,
			Text:      text,
			Summary:   table.Summary,
		})
	}

	return r.store.Rebuild(ctx, scope, docs)
}

func (r *Registrar) indexTable(ctx context.Context, scope string, doc schemaindex.Document) error {
	if err := r.store.AddTable(ctx, scope, doc); err != nil {
		logging.WithFields(map[string]interface{}{
			"scope": scope,
			"table": doc.TableName,
			"error": err.Error(),
		}).Warn("Table registered in catalog but index write failed; run rebuild-index")

		return errors.Wrapf(err, errors.ErrTypeIndexUnavailable,
			"table %q registered but not indexed", doc.TableName).
			WithSuggestion("Run rebuild-index to bring the index back in step with the catalog")
	}

	return nil
}

// indexText is the embedded document for a complete-mode table: the name
// plus whatever summary the caller supplied. Column detail comes from the
// live database at query time.
func indexText(table types.TableDescriptor) string {
	if table.Summary == "" {
		return table.TableName
	}

	return table.TableName + ": " + table.Summary
}
