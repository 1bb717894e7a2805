package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ragsql/ragsql/internal/config"
	"github.com/ragsql/ragsql/internal/embedding"
	"github.com/ragsql/ragsql/internal/generator"
	"github.com/ragsql/ragsql/internal/llm"
	"github.com/ragsql/ragsql/internal/registry"
	"github.com/ragsql/ragsql/internal/retriever"
	"github.com/ragsql/ragsql/internal/schemaindex"
)

// catalogPath keeps the registration catalog next to the index file. They
// are separate DuckDB files so each store owns its own write lock.
func catalogPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Index.Path), "catalog.db")
}

// openCatalog creates and initializes the registration catalog
func openCatalog(ctx context.Context, cfg *config.Config) (*registry.DuckDBCatalog, error) {
	catalog, err := registry.NewDuckDBCatalog(catalogPath(cfg), cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to open registration catalog: %w", err)
	}

	if err := catalog.Initialize(ctx); err != nil {
		_ = catalog.Close()

		return nil, err
	}

	return catalog, nil
}

// openStore creates and initializes the schema index store
func openStore(ctx context.Context, cfg *config.Config) (*schemaindex.DuckDBStore, error) {
	embedder, err := embedding.NewManager(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	store, err := schemaindex.NewDuckDBStore(cfg.Index, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema index: %w", err)
	}

	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()

		return nil, err
	}

	return store, nil
}

// newGenerator builds the SQL generator from the configured LLM provider
func newGenerator(cfg *config.Config) (*generator.Generator, error) {
	llmCfg := llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}

	client := llm.NewClient(llmCfg)
	if err := client.Configure(llmCfg); err != nil {
		return nil, err
	}

	return generator.NewGenerator(client, cfg.LLM.RequestTimeoutDuration()), nil
}

// newRegistrar wires the catalog, index and summarizer for the
// registration commands
func newRegistrar(ctx context.Context, cfg *config.Config, withSummarizer bool) (
	*retriever.Registrar, func(), error,
) {
	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		_ = catalog.Close()

		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		_ = catalog.Close()
	}

	var summarizer retriever.Summarizer

	if withSummarizer {
		gen, err := newGenerator(cfg)
		if err != nil {
			cleanup()

			return nil, nil, err
		}

		summarizer = gen
	}

	return retriever.NewRegistrar(catalog, store, summarizer), cleanup, nil
}
