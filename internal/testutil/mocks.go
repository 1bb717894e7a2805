// Package testutil provides shared mocks for pipeline tests, with call
// counting and error injection.
package testutil

import (
	"context"
	"sync"

	"github.com/ragsql/ragsql/internal/generator"
	"github.com/ragsql/ragsql/internal/retriever"
	"github.com/ragsql/ragsql/internal/types"
)

// MockContextBuilder implements the engine's retrieval stage
type MockContextBuilder struct {
	mu sync.RWMutex

	contextText string
	tables      types.RetrievalResult
	err         error
	callCounts  map[string]int
}

// ContextOption configures a MockContextBuilder
type ContextOption func(*MockContextBuilder)

// WithTableContext sets the rendered context and ranked tables returned by
// every BuildContext call
func WithTableContext(text string, tables types.RetrievalResult) ContextOption {
	return func(m *MockContextBuilder) {
		m.contextText = text
		m.tables = tables
	}
}

// WithRetrieveError makes BuildContext fail
func WithRetrieveError(err error) ContextOption {
	return func(m *MockContextBuilder) {
		m.err = err
	}
}

// NewMockContextBuilder creates a mock retrieval stage
func NewMockContextBuilder(opts ...ContextOption) *MockContextBuilder {
	mock := &MockContextBuilder{callCounts: make(map[string]int)}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

// BuildContext returns the configured context
func (m *MockContextBuilder) BuildContext(
	_ context.Context,
	_, _ string,
	_ retriever.Mode,
	_ retriever.TableInspector,
) (string, types.RetrievalResult, error) {
	m.mu.Lock()
	m.callCounts["BuildContext"]++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return "", nil, m.err
	}

	return m.contextText, m.tables, nil
}

// GetCallCount returns how many times an operation was invoked
func (m *MockContextBuilder) GetCallCount(operation string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCounts[operation]
}

// MockGenerator implements the engine's generation stage
type MockGenerator struct {
	mu sync.RWMutex

	sql        string
	response   string
	errors     map[string]error
	callCounts map[string]int
}

// GeneratorOption configures a MockGenerator
type GeneratorOption func(*MockGenerator)

// WithGeneratedSQL sets the SQL returned by GenerateSQL and the rework
// methods
func WithGeneratedSQL(sql string) GeneratorOption {
	return func(m *MockGenerator) {
		m.sql = sql
	}
}

// WithResponse sets the text returned by Synthesize and the rework
// explanation fields
func WithResponse(response string) GeneratorOption {
	return func(m *MockGenerator) {
		m.response = response
	}
}

// WithGeneratorError makes one operation fail (key is the method name)
func WithGeneratorError(operation string, err error) GeneratorOption {
	return func(m *MockGenerator) {
		m.errors[operation] = err
	}
}

// NewMockGenerator creates a mock generation stage
func NewMockGenerator(opts ...GeneratorOption) *MockGenerator {
	mock := &MockGenerator{
		sql:        "SELECT 1",
		response:   "ok",
		errors:     make(map[string]error),
		callCounts: make(map[string]int),
	}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

func (m *MockGenerator) record(operation string) error {
	m.mu.Lock()
	m.callCounts[operation]++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.errors[operation]
}

// GenerateSQL returns the configured SQL
func (m *MockGenerator) GenerateSQL(_ context.Context, _, _ string) (string, error) {
	if err := m.record("GenerateSQL"); err != nil {
		return "", err
	}

	return m.sql, nil
}

// OptimizeSQL returns the configured SQL and response
func (m *MockGenerator) OptimizeSQL(_ context.Context, _, _ string) (*generator.OptimizeResult, error) {
	if err := m.record("OptimizeSQL"); err != nil {
		return nil, err
	}

	return &generator.OptimizeResult{
		OptimizedQuery:          m.sql,
		OptimizationExplanation: m.response,
	}, nil
}

// ExplainSQL returns the configured response
func (m *MockGenerator) ExplainSQL(_ context.Context, _, _ string) (*generator.ExplainResult, error) {
	if err := m.record("ExplainSQL"); err != nil {
		return nil, err
	}

	return &generator.ExplainResult{SQLQueryExplanation: m.response}, nil
}

// FixSQL returns the configured SQL and response
func (m *MockGenerator) FixSQL(_ context.Context, _, _ string) (*generator.FixResult, error) {
	if err := m.record("FixSQL"); err != nil {
		return nil, err
	}

	return &generator.FixResult{
		FixedSQLQuery:  m.sql,
		FixExplanation: m.response,
	}, nil
}

// Synthesize returns the configured response
func (m *MockGenerator) Synthesize(_ context.Context, _, _, _ string) (*generator.SynthesisResult, error) {
	if err := m.record("Synthesize"); err != nil {
		return nil, err
	}

	return &generator.SynthesisResult{NaturalLanguageResponse: m.response}, nil
}

// GetCallCount returns how many times an operation was invoked
func (m *MockGenerator) GetCallCount(operation string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCounts[operation]
}

// TotalCalls returns the number of model calls across all operations
func (m *MockGenerator) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, count := range m.callCounts {
		total += count
	}

	return total
}

// MockExecutor implements the engine's execution stage
type MockExecutor struct {
	mu sync.RWMutex

	rows       []map[string]interface{}
	err        error
	callCounts map[string]int
}

// ExecutorOption configures a MockExecutor
type ExecutorOption func(*MockExecutor)

// WithRows sets the rows Execute returns
func WithRows(rows []map[string]interface{}) ExecutorOption {
	return func(m *MockExecutor) {
		m.rows = rows
	}
}

// WithExecuteError makes Execute fail
func WithExecuteError(err error) ExecutorOption {
	return func(m *MockExecutor) {
		m.err = err
	}
}

// NewMockExecutor creates a mock execution stage
func NewMockExecutor(opts ...ExecutorOption) *MockExecutor {
	mock := &MockExecutor{callCounts: make(map[string]int)}

	for _, opt := range opts {
		opt(mock)
	}

	return mock
}

// Execute returns the configured rows
func (m *MockExecutor) Execute(_ context.Context, _ string) ([]map[string]interface{}, error) {
	m.mu.Lock()
	m.callCounts["Execute"]++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	return m.rows, nil
}

// GetCallCount returns how many times an operation was invoked
func (m *MockExecutor) GetCallCount(operation string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCounts[operation]
}
