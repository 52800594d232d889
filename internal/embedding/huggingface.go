package embedding

import (
	"context"
	"fmt"

	hfembeddings "github.com/tmc/langchaingo/embeddings/huggingface"
	"github.com/tmc/langchaingo/llms/huggingface"

	"github.com/bull/pdf-assistant/internal/errs"
)

// textEmbedder is the subset of langchaingo's embedder used here.
type textEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HuggingFaceEmbedder calls the Hugging Face inference API through
// langchaingo. The default model is sentence-transformers/all-MiniLM-L6-v2.
type HuggingFaceEmbedder struct {
	embedder  textEmbedder
	model     string
	dimension int
}

// NewHuggingFaceEmbedder creates an embedder for model using token.
// url overrides the inference endpoint when non-empty.
func NewHuggingFaceEmbedder(token, model, url string) (*HuggingFaceEmbedder, error) {
	if token == "" {
		return nil, errs.Configuration("HUGGINGFACEHUB_API_TOKEN not set")
	}

	opts := []huggingface.Option{
		huggingface.WithToken(token),
		huggingface.WithModel(model),
	}
	if url != "" {
		opts = append(opts, huggingface.WithURL(url))
	}
	llm, err := huggingface.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create huggingface client: %w", err)
	}

	embedder, err := hfembeddings.NewHuggingface(
		hfembeddings.WithClient(*llm),
		hfembeddings.WithModel(model),
		hfembeddings.WithTask("feature-extraction"),
	)
	if err != nil {
		return nil, fmt.Errorf("create huggingface embedder: %w", err)
	}

	return &HuggingFaceEmbedder{
		embedder:  embedder,
		model:     model,
		dimension: Dimension,
	}, nil
}

// Model returns the Hugging Face model id.
func (e *HuggingFaceEmbedder) Model() string { return e.model }

// Dimension returns the vector length.
func (e *HuggingFaceEmbedder) Dimension() int { return e.dimension }

// EmbedDocuments embeds texts in one request per langchaingo batch.
func (e *HuggingFaceEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errs.External("huggingface embed documents", err)
	}
	if err := checkVectors(e.model, vectors, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *HuggingFaceEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, errs.External("huggingface embed query", err)
	}
	if err := checkVectors(e.model, [][]float32{vector}, 1, e.dimension); err != nil {
		return nil, err
	}
	return vector, nil
}
