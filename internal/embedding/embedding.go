// Package embedding turns text into fixed-length vectors for the vector index.
package embedding

import (
	"context"
	"fmt"

	"github.com/bull/pdf-assistant/internal/errs"
)

// Dimension is the vector size every provider must produce. It matches the
// vector index configuration; all-MiniLM-L6-v2 emits 384 floats.
const Dimension = 384

// Provider embeds text. Indexing and retrieval must use the same Provider
// (same model and dimension) or similarity scores are meaningless.
type Provider interface {
	// Model identifies the embedding model, e.g. "sentence-transformers/all-MiniLM-L6-v2".
	Model() string
	// Dimension is the length of every returned vector.
	Dimension() int
	// EmbedDocuments returns one vector per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// checkVectors verifies a provider response: one vector per input, each of
// the expected length.
func checkVectors(model string, vectors [][]float32, inputs, dimension int) error {
	if len(vectors) != inputs {
		return errs.External("embed", fmt.Errorf("model %s returned %d vectors for %d inputs", model, len(vectors), inputs))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return errs.Configuration("model %s returned %d dimensions for input %d, index expects %d",
				model, len(v), i, dimension)
		}
	}
	return nil
}
