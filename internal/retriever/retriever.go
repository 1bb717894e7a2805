// Package retriever turns a natural-language question into ranked table
// context for SQL generation. Complete mode describes tables from the live
// target database; minimal mode replays the schema documents captured at
// registration time.
package retriever

import (
	"context"
	"strings"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/schemaindex"
	"github.com/ragsql/ragsql/internal/types"
)

// Mode selects how retrieved tables are rendered into model context
type Mode string

const (
	// ModeComplete introspects the live target database for column detail
	ModeComplete Mode = "complete"
	// ModeMinimal uses the schema text stored at registration time
	ModeMinimal Mode = "minimal"
)

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeComplete, ModeMinimal:
		return Mode(s), nil
	case "":
		return ModeComplete, nil
	default:
		return "", errors.Newf(errors.ErrTypeValidation,
			"unknown retrieval mode %q", s).
			WithSuggestion(`Use "complete" or "minimal"`)
	}
}

// TableInspector describes a table's live columns. Satisfied by
// target.Executor.
type TableInspector interface {
	TableInfo(ctx context.Context, tableName string) (string, error)
}

// Retriever ranks registered tables against a question and renders them as
// context text
type Retriever struct {
	store schemaindex.Store
	topK  int
}

// New creates a retriever over the given index store. topK <= 0 selects the
// store default.
func New(store schemaindex.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = schemaindex.DefaultTopK
	}

	return &Retriever{store: store, topK: topK}
}

// Retrieve returns the ranked tables for a question. An empty scope index
// surfaces as a not-found error from the store.
func (r *Retriever) Retrieve(ctx context.Context, scope, question string) (types.RetrievalResult, error) {
	return r.store.Retrieve(ctx, scope, question, r.topK)
}

// BuildContext retrieves tables and renders them into a single context
// string, rank order preserved, one table per blank-line separated block.
// inspector is only consulted in complete mode.
func (r *Retriever) BuildContext(
	ctx context.Context,
	scope, question string,
	mode Mode,
	inspector TableInspector,
) (string, types.RetrievalResult, error) {
	result, err := r.Retrieve(ctx, scope, question)
	if err != nil {
		return "", nil, err
	}

	text, err := r.renderContext(ctx, result, mode, inspector)
	if err != nil {
		return "", nil, err
	}

	return text, result, nil
}

func (r *Retriever) renderContext(
	ctx context.Context,
	result types.RetrievalResult,
	mode Mode,
	inspector TableInspector,
) (string, error) {
	blocks := make([]string, 0, len(result))

	for _, node := range result {
		switch mode {
		case ModeMinimal:
			blocks = append(blocks, node.Text)

		case ModeComplete:
			if inspector == nil {
				return "", errors.New(errors.ErrTypeInternal,
					"complete-mode retrieval requires a target database connection")
			}

			info, err := inspector.TableInfo(ctx, node.TableName)
			if err != nil {
				return "", err
			}

			if node.Summary != "" {
				info += " The table description is: " + node.Summary
			}

			blocks = append(blocks, info)

		default:
			return "", errors.Newf(errors.ErrTypeValidation,
				"unknown retrieval mode %q", mode)
		}
	}

	return strings.Join(blocks, "\n\n"), nil
}
