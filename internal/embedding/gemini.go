package embedding

import (
	"context"
	"fmt"
	"strings"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/bull/pdf-assistant/internal/errs"
)

const (
	// DefaultGeminiModel is reduced to Dimension outputs server side.
	DefaultGeminiModel = "gemini-embedding-001"

	// geminiBatchSize is the API limit on requests per batchEmbedContents call.
	geminiBatchSize = 100
)

// batchEmbedClient is the subset of the generativelanguage client used here.
type batchEmbedClient interface {
	BatchEmbedContents(ctx context.Context, req *generativelanguagepb.BatchEmbedContentsRequest, opts ...gax.CallOption) (*generativelanguagepb.BatchEmbedContentsResponse, error)
	Close() error
}

// GeminiEmbedder embeds text with a Gemini embedding model, authenticated by
// the same API key as answer generation.
type GeminiEmbedder struct {
	client    batchEmbedClient
	model     string
	dimension int
}

// NewGeminiEmbedder creates an embedder for model. opts are appended after
// the API key, so tests can redirect the endpoint.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errs.Configuration("GEMINI_API_KEY not set")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := generativelanguage.NewGenerativeRESTClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini embedding client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: Dimension,
	}, nil
}

// Model returns the Gemini model id.
func (e *GeminiEmbedder) Model() string { return e.model }

// Dimension returns the requested output dimensionality.
func (e *GeminiEmbedder) Dimension() int { return e.dimension }

// EmbedDocuments embeds texts as retrieval documents, batching requests.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += geminiBatchSize {
		end := min(i+geminiBatchSize, len(texts))

		vectors, err := e.embedBatch(ctx, texts[i:end], generativelanguagepb.TaskType_RETRIEVAL_DOCUMENT)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedQuery embeds a single search query.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text}, generativelanguagepb.TaskType_RETRIEVAL_QUERY)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Close releases the underlying HTTP client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string, task generativelanguagepb.TaskType) ([][]float32, error) {
	name := e.resourceName()
	dimension := int32(e.dimension)

	req := &generativelanguagepb.BatchEmbedContentsRequest{Model: name}
	for _, text := range texts {
		req.Requests = append(req.Requests, &generativelanguagepb.EmbedContentRequest{
			Model: name,
			Content: &generativelanguagepb.Content{
				Parts: []*generativelanguagepb.Part{
					{Data: &generativelanguagepb.Part_Text{Text: text}},
				},
			},
			TaskType:             &task,
			OutputDimensionality: &dimension,
		})
	}

	resp, err := e.client.BatchEmbedContents(ctx, req)
	if err != nil {
		return nil, errs.External("gemini embeddings", err)
	}

	vectors := make([][]float32, 0, len(resp.GetEmbeddings()))
	for _, emb := range resp.GetEmbeddings() {
		vectors = append(vectors, emb.GetValues())
	}
	if err := checkVectors(e.model, vectors, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *GeminiEmbedder) resourceName() string {
	if strings.HasPrefix(e.model, "models/") {
		return e.model
	}
	return "models/" + e.model
}
