package storage

import (
	"context"
	"fmt"
	"regexp"
)

// VectorIndex is a cosine-similarity store of Records. Pinecone is the
// production backend; Qdrant and chromem serve self-hosted and local runs.
type VectorIndex interface {
	// EnsureIndex creates the index when absent and connects to it.
	// Existing indexes are reused unchanged. Safe to call repeatedly.
	EnsureIndex(ctx context.Context) error
	// EmbeddingModel returns the model marker recorded for the index, or ""
	// when the index carries none yet.
	EmbeddingModel(ctx context.Context) (string, error)
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []*Record) error
	// Query returns at most topK records ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]*ScoredRecord, error)
	Close() error
}

var markerInvalid = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ModelMarker normalises an embedding model name into the form every
// backend stores. Pinecone tag values only allow letters, digits, '_' and '-'.
func ModelMarker(model string) string {
	return markerInvalid.ReplaceAllString(model, "_")
}

// CheckEmbeddingModel fails when idx was populated with a model other than
// model. An index without a marker passes.
func CheckEmbeddingModel(ctx context.Context, idx VectorIndex, model string) error {
	stored, err := idx.EmbeddingModel(ctx)
	if err != nil {
		return fmt.Errorf("read index embedding model: %w", err)
	}
	if stored != "" && stored != ModelMarker(model) {
		return fmt.Errorf("%w: index was built with %s, configured model is %s",
			ErrModelMismatch, stored, model)
	}
	return nil
}

func checkDimensions(records []*Record, dimension int) error {
	for i, r := range records {
		if len(r.Vector) != dimension {
			return fmt.Errorf("%w: record %d (%s) has %d dimensions, expected %d",
				ErrDimensionMismatch, i, r.Source, len(r.Vector), dimension)
		}
	}
	return nil
}

func checkQueryDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}
