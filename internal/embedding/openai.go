package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bull/pdf-assistant/internal/errs"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
const DefaultBatchSize = 500

// OpenAIEmbedder generates embeddings with the OpenAI embeddings API,
// asking the model to shorten its output to Dimension floats.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
}

// NewOpenAIEmbedder creates an embedder for model. Extra request options
// (base URL, HTTP client) are appended after the API key.
// The client never retries: a failed call is reported to the caller.
func NewOpenAIEmbedder(apiKey, model string, batchSize int, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errs.Configuration("OPENAI_API_KEY not set")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(opts...)

	return &OpenAIEmbedder{
		client:    &client,
		model:     model,
		dimension: Dimension,
		batchSize: batchSize,
	}, nil
}

// Model returns the OpenAI model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension returns the vector length.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// EmbedDocuments generates embeddings for texts, batching requests.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedQuery embeds a single query string.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dimension)),
	})
	if err != nil {
		return nil, errs.External("openai embeddings", err)
	}

	// Data carries its input index; place each vector by it.
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, errs.External("openai embeddings", fmt.Errorf("response index %d out of range", data.Index))
		}
		vectors[data.Index] = toFloat32(data.Embedding)
	}
	if err := checkVectors(e.model, vectors, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but the vector index stores float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
