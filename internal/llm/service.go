package llm

import (
	"context"
	"encoding/json"
)

// Service defines the interface for language model calls. The single
// operation is a chat completion constrained to a named JSON schema:
// the caller supplies the prompt and the expected output shape, and
// receives the raw JSON to validate against that shape.
type Service interface {
	CompleteStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
	Configure(config Config) error
}

// Config represents LLM service configuration
type Config struct {
	Provider string            `json:"provider"` // openai, anthropic, ollama
	Model    string            `json:"model"`
	APIKey   string            `json:"api_key,omitempty"`
	BaseURL  string            `json:"base_url,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// StructuredRequest is one structured-output completion request.
// SchemaName identifies the output shape (used as the function/tool name
// for providers that support it); Schema is its JSON Schema descriptor.
type StructuredRequest struct {
	Prompt     string
	SchemaName string
	Schema     map[string]interface{}
	MaxTokens  int
}

// Provider constants for different LLM providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// defaultMaxTokens bounds a response when the caller does not set one.
const defaultMaxTokens = 1000
