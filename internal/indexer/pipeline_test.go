package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-assistant/internal/chunker"
	"github.com/bull/pdf-assistant/internal/errs"
	"github.com/bull/pdf-assistant/internal/loader"
	"github.com/bull/pdf-assistant/internal/storage"
	"github.com/bull/pdf-assistant/internal/testutil"
)

// recordingIndex is an in-memory VectorIndex that records calls.
type recordingIndex struct {
	marker      string
	ensureErr   error
	upsertErr   error
	ensureCalls int
	upserts     [][]*storage.Record
}

func (r *recordingIndex) EnsureIndex(context.Context) error {
	r.ensureCalls++
	return r.ensureErr
}

func (r *recordingIndex) EmbeddingModel(context.Context) (string, error) { return r.marker, nil }

func (r *recordingIndex) Upsert(_ context.Context, records []*storage.Record) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts = append(r.upserts, records)
	return nil
}

func (r *recordingIndex) Query(context.Context, []float32, int) ([]*storage.ScoredRecord, error) {
	return nil, nil
}

func (r *recordingIndex) Close() error { return nil }

func (r *recordingIndex) upserted() []*storage.Record {
	var all []*storage.Record
	for _, batch := range r.upserts {
		all = append(all, batch...)
	}
	return all
}

func newPipeline(t *testing.T, dir string, embedder *testutil.HashEmbedder, index storage.VectorIndex) *Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := chunker.New(1000, 200)
	require.NoError(t, err)
	return NewPipeline(dir, loader.New(nil, false, logger), c, embedder, index, logger)
}

func TestIndexAll_SinglePDF(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePDF(t, dir, "sky.pdf", "The sky is blue.")

	index := &recordingIndex{}
	embedder := testutil.NewHashEmbedder(storage.VectorDimension)
	result, err := newPipeline(t, dir, embedder, index).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, index.ensureCalls)
	assert.Equal(t, 1, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	assert.Equal(t, 1, result.TotalChunks)
	assert.Equal(t, 1, result.Upserted)

	records := index.upserted()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Text, "The sky is blue.")
	assert.Equal(t, "sky.pdf", records[0].Source)
	assert.Equal(t, storage.RecordID("sky.pdf", 0), records[0].ID)
	assert.Len(t, records[0].Vector, storage.VectorDimension)
}

func TestIndexAll_EmptyFolderUpsertsNothing(t *testing.T) {
	index := &recordingIndex{}
	embedder := testutil.NewHashEmbedder(storage.VectorDimension)

	result, err := newPipeline(t, t.TempDir(), embedder, index).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, index.ensureCalls, "index is still prepared")
	assert.Zero(t, result.TotalDocs)
	assert.Zero(t, result.Upserted)
	assert.Empty(t, index.upserts)
	assert.Empty(t, embedder.Batches, "nothing to embed")
}

func TestIndexAll_SkipsUnreadablePDF(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePDF(t, dir, "good.pdf", "Readable text.")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte(strings.Repeat("not a pdf at all ", 20)), 0o644))

	index := &recordingIndex{}
	result, err := newPipeline(t, dir, testutil.NewHashEmbedder(storage.VectorDimension), index).
		IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "bad.pdf", result.FailedDocs[0].Source)
	assert.Equal(t, 1, result.Upserted)
}

func TestIndexAll_ChunkIndexesPerDocument(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("Lorem ipsum dolor sit amet. ", 80) // ~2240 chars
	testutil.WritePDF(t, dir, "a.pdf", long)
	testutil.WritePDF(t, dir, "b.pdf", "Short one.")

	index := &recordingIndex{}
	result, err := newPipeline(t, dir, testutil.NewHashEmbedder(storage.VectorDimension), index).
		IndexAll(context.Background())
	require.NoError(t, err)

	records := index.upserted()
	assert.Equal(t, result.TotalChunks, len(records))
	require.Greater(t, len(records), 2)

	seen := map[string]bool{}
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
		assert.LessOrEqual(t, len([]rune(r.Text)), 1000)
	}

	last := records[len(records)-1]
	assert.Equal(t, "b.pdf", last.Source)
	assert.Equal(t, 0, last.ChunkIndex)
}

func TestIndexAll_EmbeddingFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePDF(t, dir, "sky.pdf", "The sky is blue.")

	embedder := testutil.NewHashEmbedder(storage.VectorDimension)
	embedder.Err = errs.External("embed", errors.New("503"))
	index := &recordingIndex{}

	_, err := newPipeline(t, dir, embedder, index).IndexAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.Empty(t, index.upserts, "no partial index")
}

func TestIndexAll_ModelMismatch(t *testing.T) {
	index := &recordingIndex{marker: "some-other-model"}

	_, err := newPipeline(t, t.TempDir(), testutil.NewHashEmbedder(storage.VectorDimension), index).
		IndexAll(context.Background())
	assert.ErrorIs(t, err, storage.ErrModelMismatch)
}

func TestIndexAll_EnsureIndexFailure(t *testing.T) {
	index := &recordingIndex{ensureErr: errs.External("create index", errors.New("quota"))}

	_, err := newPipeline(t, t.TempDir(), testutil.NewHashEmbedder(storage.VectorDimension), index).
		IndexAll(context.Background())
	assert.ErrorIs(t, err, errs.ErrExternalService)
}

func TestIndexAll_RerunIsIdempotentWithChromem(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePDF(t, dir, "sky.pdf", "The sky is blue.")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	embedder := testutil.NewHashEmbedder(storage.VectorDimension)
	index, err := storage.NewChromemStorage(storage.ChromemConfig{
		IndexName:      "test",
		Namespace:      "default",
		EmbeddingModel: embedder.Model(),
	}, logger)
	require.NoError(t, err)

	p := newPipeline(t, dir, embedder, index)
	_, err = p.IndexAll(context.Background())
	require.NoError(t, err)
	_, err = p.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, index.Count(), "deterministic ids overwrite")
}
