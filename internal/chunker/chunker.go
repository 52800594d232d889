// Package chunker splits document text into overlapping, bounded chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/bull/pdf-assistant/internal/errs"
	"github.com/bull/pdf-assistant/internal/loader"
)

// Chunk is a contiguous slice of one document's text.
type Chunk struct {
	Source string // Filename of the originating document
	Index  int    // Position in document (0, 1, 2...)
	Text   string
}

// separators are tried in order: paragraph, line, word, raw character.
var separators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively on paragraph, line and word boundaries so
// that no chunk exceeds Size characters and neighbours share up to Overlap.
type Chunker struct {
	Size     int
	Overlap  int
	splitter textsplitter.RecursiveCharacter
}

// New creates a Chunker. Lengths are counted in characters (runes).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errs.Configuration("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, errs.Configuration("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separators),
	)
	return &Chunker{
		Size:     size,
		Overlap:  overlap,
		splitter: splitter,
	}, nil
}

// SplitDocument chunks a single document. A document no longer than Size
// yields exactly one chunk; a blank document yields none.
func (c *Chunker) SplitDocument(doc loader.Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", doc.Source, err)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Source: doc.Source,
			Index:  len(chunks),
			Text:   part,
		})
	}
	return chunks, nil
}

// Split chunks every document in order and returns the combined sequence.
func (c *Chunker) Split(docs []loader.Document) ([]Chunk, error) {
	var all []Chunk
	for _, doc := range docs {
		chunks, err := c.SplitDocument(doc)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}
