package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/bull/pdf-assistant/internal/errs"
)

// ChromemConfig selects an embedded chromem-go database. An empty Path keeps
// everything in memory.
type ChromemConfig struct {
	Path           string
	IndexName      string
	Namespace      string
	EmbeddingModel string
	Dimension      int
}

// ChromemStorage stores records in an embedded chromem-go collection named
// after the index and namespace.
type ChromemStorage struct {
	db         *chromem.DB
	collection *chromem.Collection
	cfg        ChromemConfig
	logger     *slog.Logger
}

// errCallerEmbeds guards against chromem computing embeddings itself; every
// document and query arrives with its vector.
var errCallerEmbeds = errors.New("chromem: embeddings are supplied by the caller")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errCallerEmbeds
}

// NewChromemStorage opens (or creates) the database.
func NewChromemStorage(cfg ChromemConfig, logger *slog.Logger) (*ChromemStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = VectorDimension
	}

	db := chromem.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, errs.Configuration("open chromem database %s: %v", cfg.Path, err)
		}
	}

	return &ChromemStorage{db: db, cfg: cfg, logger: logger}, nil
}

// EnsureIndex gets or creates the collection.
func (s *ChromemStorage) EnsureIndex(_ context.Context) error {
	name := s.collectionName()
	existing := s.db.GetCollection(name, noEmbedding)
	if existing != nil {
		s.collection = existing
		return nil
	}

	collection, err := s.db.CreateCollection(name, map[string]string{
		FieldEmbeddingModel: ModelMarker(s.cfg.EmbeddingModel),
		"dimension":         strconv.Itoa(s.cfg.Dimension),
	}, noEmbedding)
	if err != nil {
		return fmt.Errorf("create chromem collection %s: %w", name, err)
	}
	s.collection = collection

	s.logger.Info("Created chromem collection",
		"collection", name,
		"persistent", s.cfg.Path != "")
	return nil
}

// EmbeddingModel reads the marker from a stored document. Returns "" when
// the collection is empty.
func (s *ChromemStorage) EmbeddingModel(ctx context.Context) (string, error) {
	if s.collection == nil {
		return "", ErrNotConnected
	}
	if s.collection.Count() == 0 {
		return "", nil
	}

	// Any unit vector finds some document; all carry the same marker.
	probe := make([]float32, s.cfg.Dimension)
	probe[0] = 1
	results, err := s.collection.QueryEmbedding(ctx, probe, 1, nil, nil)
	if err != nil {
		return "", fmt.Errorf("chromem probe query: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].Metadata[FieldEmbeddingModel], nil
}

// Upsert adds records; an existing ID is overwritten.
func (s *ChromemStorage) Upsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	if s.collection == nil {
		return ErrNotConnected
	}
	if err := checkDimensions(records, s.cfg.Dimension); err != nil {
		return err
	}

	marker := ModelMarker(s.cfg.EmbeddingModel)
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID: r.ID,
			Metadata: map[string]string{
				FieldSource:         r.Source,
				FieldChunkIndex:     strconv.Itoa(r.ChunkIndex),
				FieldEmbeddingModel: marker,
			},
			Embedding: r.Vector,
			Content:   r.Text,
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add documents: %w", err)
	}
	return nil
}

// Query returns up to topK records. chromem rejects requests for more
// results than the collection holds, so the count is clamped.
func (s *ChromemStorage) Query(ctx context.Context, vector []float32, topK int) ([]*ScoredRecord, error) {
	if s.collection == nil {
		return nil, ErrNotConnected
	}
	if err := checkQueryDimension(vector, s.cfg.Dimension); err != nil {
		return nil, err
	}

	n := min(topK, s.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, normalize(vector), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	scored := make([]*ScoredRecord, 0, len(results))
	for _, res := range results {
		index, _ := strconv.Atoi(res.Metadata[FieldChunkIndex])
		scored = append(scored, &ScoredRecord{
			Record: &Record{
				ID:         res.ID,
				Source:     res.Metadata[FieldSource],
				ChunkIndex: index,
				Text:       res.Content,
			},
			Score: float64(res.Similarity),
		})
	}
	return scored, nil
}

// Count returns the number of stored records.
func (s *ChromemStorage) Count() int {
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

// Close is a no-op; persistent databases write through on every change.
func (s *ChromemStorage) Close() error {
	return nil
}

func (s *ChromemStorage) collectionName() string {
	return s.cfg.IndexName + "-" + s.cfg.Namespace
}

// normalize scales v to unit length. chromem compares by dot product.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.Abs(norm-1) < 1e-6 {
		return v
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
