// Package retriever finds the indexed chunks most similar to a question.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bull/pdf-assistant/internal/embedding"
	"github.com/bull/pdf-assistant/internal/storage"
)

// DefaultTopK is the number of chunks handed to the answer prompt.
const DefaultTopK = 4

// Retriever embeds a question and queries the vector index.
type Retriever struct {
	embedder embedding.Provider
	index    storage.VectorIndex
	topK     int
	logger   *slog.Logger
}

// New creates a Retriever. embedder must be the provider the index was
// built with. topK <= 0 selects DefaultTopK.
func New(embedder embedding.Provider, index storage.VectorIndex, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns up to topK records ordered by descending similarity.
// An empty result is not an error. The index's embedding model is checked
// on every call, so a mismatch surfaces as storage.ErrModelMismatch instead
// of silently poor matches.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*storage.ScoredRecord, error) {
	if err := storage.CheckEmbeddingModel(ctx, r.index, r.embedder.Model()); err != nil {
		return nil, err
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	records, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if len(records) > r.topK {
		records = records[:r.topK]
	}

	if len(records) == 0 {
		r.logger.Warn("No context retrieved for question", "top_k", r.topK)
	} else {
		r.logger.Debug("Retrieved context",
			"records", len(records),
			"best_score", records[0].Score,
			"best_source", records[0].Record.Source)
	}

	return records, nil
}

// Texts extracts the chunk texts of records, keeping their order.
func Texts(records []*storage.ScoredRecord) []string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Record.Text
	}
	return texts
}
