// Package indexer builds the vector index from the documents folder.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/pdf-assistant/internal/chunker"
	"github.com/bull/pdf-assistant/internal/embedding"
	"github.com/bull/pdf-assistant/internal/loader"
	"github.com/bull/pdf-assistant/internal/storage"
)

// IndexResult contains statistics about an indexing run.
type IndexResult struct {
	TotalDocs      int // PDFs found, readable or not
	SuccessfulDocs int
	FailedDocs     []loader.FailedDoc
	TotalChunks    int
	Upserted       int
	Duration       time.Duration
}

// Pipeline loads, chunks, embeds and upserts every PDF in a folder.
type Pipeline struct {
	dir      string
	loader   *loader.Loader
	chunker  *chunker.Chunker
	embedder embedding.Provider
	index    storage.VectorIndex
	logger   *slog.Logger
}

// NewPipeline creates an indexing pipeline over dir.
func NewPipeline(
	dir string,
	loader *loader.Loader,
	chunker *chunker.Chunker,
	embedder embedding.Provider,
	index storage.VectorIndex,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		dir:      dir,
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// IndexAll prepares the index and writes every chunk of every readable PDF.
// Unreadable PDFs are skipped and reported in FailedDocs (unless the loader
// is strict). Any embedding or upsert failure aborts the run; nothing is
// upserted until all chunks are embedded.
func (p *Pipeline) IndexAll(ctx context.Context) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	// 1. Index exists, has the right dimension and was built with our model
	if err := p.index.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	if err := storage.CheckEmbeddingModel(ctx, p.index, p.embedder.Model()); err != nil {
		return nil, err
	}

	// 2. Read PDFs
	loaded, err := p.loader.Load(ctx, p.dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	result.TotalDocs = len(loaded.Documents) + len(loaded.Failed)
	result.SuccessfulDocs = len(loaded.Documents)
	result.FailedDocs = loaded.Failed
	p.logger.Info("Loaded documents",
		"dir", p.dir,
		"loaded", result.SuccessfulDocs,
		"failed", len(result.FailedDocs))

	// 3. Chunk and embed each document
	var records []*storage.Record
	for _, doc := range loaded.Documents {
		docRecords, err := p.processDocument(ctx, doc)
		if err != nil {
			return nil, err
		}
		records = append(records, docRecords...)
	}
	result.TotalChunks = len(records)

	// 4. Upsert
	if len(records) == 0 {
		p.logger.Warn("No text chunks to index", "dir", p.dir)
	} else {
		if err := p.index.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("upsert chunks: %w", err)
		}
		result.Upserted = len(records)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument chunks and embeds one document.
func (p *Pipeline) processDocument(ctx context.Context, doc loader.Document) ([]*storage.Record, error) {
	chunks, err := p.chunker.SplitDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Source, err)
	}
	if len(chunks) == 0 {
		p.logger.Debug("Document has no text", "source", doc.Source)
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", doc.Source, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed %s: got %d vectors for %d chunks", doc.Source, len(vectors), len(chunks))
	}

	records := make([]*storage.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = &storage.Record{
			ID:         storage.RecordID(chunk.Source, chunk.Index),
			Source:     chunk.Source,
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			Vector:     vectors[i],
		}
	}

	p.logger.Info("Embedded document", "source", doc.Source, "chunks", len(chunks))
	return records, nil
}
