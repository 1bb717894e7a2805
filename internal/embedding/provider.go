package embedding

import (
	"context"
	"fmt"

	"github.com/ragsql/ragsql/internal/config"
)

// Provider defines the interface for embedding providers
type Provider interface {
	// GenerateEmbedding generates an embedding for the given text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GetDimensions returns the dimensionality of embeddings produced by this provider
	GetDimensions() int

	// GetName returns the provider name for identification
	GetName() string
}

// NewProvider creates a provider from configuration
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return NewLocalProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// Manager wraps an embedding Provider and validates its output shape
type Manager struct {
	provider Provider
}

// NewManager creates a new embedding manager
func NewManager(cfg config.EmbeddingConfig) (*Manager, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive: %d", cfg.Dimensions)
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	if provider.GetDimensions() != cfg.Dimensions {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d",
			cfg.Dimensions, provider.GetDimensions())
	}

	return &Manager{provider: provider}, nil
}

// GenerateEmbedding generates an embedding using the configured provider
func (m *Manager) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if len(vec) != m.provider.GetDimensions() {
		return nil, fmt.Errorf("provider %s returned %d dimensions, expected %d",
			m.provider.GetName(), len(vec), m.provider.GetDimensions())
	}

	return vec, nil
}

// GetDimensions returns the embedding dimensions
func (m *Manager) GetDimensions() int {
	return m.provider.GetDimensions()
}
