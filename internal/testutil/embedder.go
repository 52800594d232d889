package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder is a deterministic offline embedder. Each lower-cased word
// adds weight to one of Dim buckets, so texts sharing words score higher.
// A small bias on the last bucket keeps every vector non-zero.
type HashEmbedder struct {
	Dim int
	Err error // returned by every call when set

	mu      sync.Mutex
	Batches [][]string // inputs of EmbedDocuments calls
	Queries []string
}

// NewHashEmbedder returns a HashEmbedder producing vectors of dim floats.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Model() string  { return "test/hash-embedder" }
func (h *HashEmbedder) Dimension() int { return h.Dim }

func (h *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.Batches = append(h.Batches, texts)
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	h.Queries = append(h.Queries, text)
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[int(f.Sum32())%(h.Dim-1)]++
	}
	v[h.Dim-1] = 0.01
	return v
}
