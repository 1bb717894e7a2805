package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/ragsql/ragsql/internal/config"
)

// LocalProvider produces deterministic embeddings in-process using hashed
// bag-of-words features. It has no notion of semantics beyond token overlap,
// but it requires no network access and gives stable, comparable vectors,
// which is enough for schema retrieval over small per-database collections
// and for running the full pipeline offline.
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider creates a local hashing provider
func NewLocalProvider(cfg config.EmbeddingConfig) (*LocalProvider, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive: %d", cfg.Dimensions)
	}

	return &LocalProvider{dimensions: cfg.Dimensions}, nil
}

// GenerateEmbedding maps each token (and adjacent token bigram) onto a
// hashed dimension and L2-normalizes the result
func (p *LocalProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)

	tokens := tokenize(text)
	for i, tok := range tokens {
		vec[p.bucket(tok)]++

		if i+1 < len(tokens) {
			vec[p.bucket(tok+" "+tokens[i+1])]++
		}
	}

	normalize(vec)

	return vec, nil
}

func (p *LocalProvider) GetDimensions() int {
	return p.dimensions
}

func (p *LocalProvider) GetName() string {
	return "local:hashed-bow"
}

func (p *LocalProvider) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))

	return int(h.Sum32() % uint32(p.dimensions))
}

// tokenize lowercases and splits on any non-alphanumeric rune. Identifiers
// like "city_stats" split into their word parts so questions phrased in
// plain language still overlap with schema text.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}

	return tokens
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	if norm == 0 {
		return
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
