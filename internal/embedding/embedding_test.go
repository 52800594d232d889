package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/googleapis/gax-go/v2"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-assistant/internal/errs"
)

type fakeTextEmbedder struct {
	dim int
	err error
}

func (f *fakeTextEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(i + 1)
	}
	return out, nil
}

func (f *fakeTextEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func newTestHF(inner textEmbedder) *HuggingFaceEmbedder {
	return &HuggingFaceEmbedder{embedder: inner, model: "test/model", dimension: Dimension}
}

func TestHuggingFace_EmbedDocuments(t *testing.T) {
	e := newTestHF(&fakeTextEmbedder{dim: Dimension})

	vectors, err := e.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Len(t, v, Dimension)
		assert.Equal(t, float32(i+1), v[0], "order preserved")
	}

	q, err := e.EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, q, Dimension)
}

func TestHuggingFace_EmptyInput(t *testing.T) {
	e := newTestHF(&fakeTextEmbedder{err: errors.New("must not be called")})

	vectors, err := e.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestHuggingFace_WrongDimensionIsConfigurationError(t *testing.T) {
	e := newTestHF(&fakeTextEmbedder{dim: 768})

	_, err := e.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.Contains(t, err.Error(), "768")
}

func TestHuggingFace_ServiceErrorIsExternal(t *testing.T) {
	e := newTestHF(&fakeTextEmbedder{err: errors.New("503 model loading")})

	_, err := e.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.Contains(t, err.Error(), "503 model loading")
}

func TestNewHuggingFaceEmbedder_RequiresToken(t *testing.T) {
	_, err := NewHuggingFaceEmbedder("", "m", "")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

// openAIServer answers /embeddings with vectors of dim floats and counts calls.
func openAIServer(t *testing.T, dim int, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, Dimension, req.Dimensions)

		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		}
		// Reverse order to check placement by index.
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dim)
			vec[0] = float64(i)
			data = append(data, item{Object: "embedding", Index: i, Embedding: vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_EmbedDocumentsBatches(t *testing.T) {
	var calls atomic.Int32
	srv := openAIServer(t, Dimension, http.StatusOK, &calls)

	e, err := NewOpenAIEmbedder("key", "text-embedding-3-small", 2, option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.Equal(t, int32(3), calls.Load())

	// Each batch restarts indexes at zero.
	assert.Equal(t, float32(0), vectors[0][0])
	assert.Equal(t, float32(1), vectors[1][0])
	assert.Equal(t, float32(0), vectors[2][0])
	assert.Equal(t, float32(0), vectors[4][0])
	assert.Equal(t, "text-embedding-3-small", e.Model())
	assert.Equal(t, Dimension, e.Dimension())
}

func TestOpenAI_FailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := openAIServer(t, Dimension, http.StatusInternalServerError, &calls)

	e, err := NewOpenAIEmbedder("key", "text-embedding-3-small", 0, option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_WrongDimension(t *testing.T) {
	var calls atomic.Int32
	srv := openAIServer(t, 1536, http.StatusOK, &calls)

	e, err := NewOpenAIEmbedder("key", "text-embedding-3-small", 0, option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2}, toFloat32([]float64{0.5, -1, 2}))
}

// fakeBatchClient answers batchEmbedContents with dim-length vectors whose
// first value is the request position within the batch.
type fakeBatchClient struct {
	dim      int
	err      error
	requests []*generativelanguagepb.BatchEmbedContentsRequest
	closed   bool
}

func (f *fakeBatchClient) BatchEmbedContents(_ context.Context, req *generativelanguagepb.BatchEmbedContentsRequest, _ ...gax.CallOption) (*generativelanguagepb.BatchEmbedContentsResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	resp := &generativelanguagepb.BatchEmbedContentsResponse{}
	for i := range req.GetRequests() {
		values := make([]float32, f.dim)
		values[0] = float32(i + 1)
		resp.Embeddings = append(resp.Embeddings, &generativelanguagepb.ContentEmbedding{Values: values})
	}
	return resp, nil
}

func (f *fakeBatchClient) Close() error {
	f.closed = true
	return nil
}

func newTestGemini(client batchEmbedClient) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: DefaultGeminiModel, dimension: Dimension}
}

func TestGemini_EmbedDocumentsRequests384Dimensions(t *testing.T) {
	client := &fakeBatchClient{dim: Dimension}
	e := newTestGemini(client)

	texts := make([]string, geminiBatchSize+5)
	for i := range texts {
		texts[i] = "chunk"
	}
	vectors, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	assert.Equal(t, float32(1), vectors[geminiBatchSize][0], "second batch starts over")

	require.Len(t, client.requests, 2)
	first := client.requests[0]
	assert.Equal(t, "models/gemini-embedding-001", first.GetModel())
	require.Len(t, first.GetRequests(), geminiBatchSize)
	inner := first.GetRequests()[0]
	assert.Equal(t, int32(Dimension), inner.GetOutputDimensionality())
	assert.Equal(t, generativelanguagepb.TaskType_RETRIEVAL_DOCUMENT, inner.GetTaskType())
	assert.Equal(t, "chunk", inner.GetContent().GetParts()[0].GetText())
}

func TestGemini_EmbedQueryUsesQueryTask(t *testing.T) {
	client := &fakeBatchClient{dim: Dimension}

	v, err := newTestGemini(client).EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, v, Dimension)
	require.Len(t, client.requests, 1)
	assert.Equal(t, generativelanguagepb.TaskType_RETRIEVAL_QUERY, client.requests[0].GetRequests()[0].GetTaskType())
}

func TestGemini_Errors(t *testing.T) {
	_, err := newTestGemini(&fakeBatchClient{err: errors.New("quota exceeded")}).
		EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.ErrorContains(t, err, "quota exceeded")

	_, err = newTestGemini(&fakeBatchClient{dim: 768}).EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestGemini_Close(t *testing.T) {
	client := &fakeBatchClient{dim: Dimension}
	require.NoError(t, newTestGemini(client).Close())
	assert.True(t, client.closed)
}

func TestNewGeminiEmbedder_RequiresKey(t *testing.T) {
	_, err := NewGeminiEmbedder(context.Background(), "", "")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
