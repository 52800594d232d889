package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bull/pdf-assistant/internal/errs"
)

// pineconeBatchSize keeps upsert requests well under Pinecone's 2MB limit
// for 384-dim vectors with chunk text in metadata.
const pineconeBatchSize = 100

// PineconeConfig names the serverless index to use or create.
type PineconeConfig struct {
	APIKey         string
	IndexName      string
	Cloud          string // "aws", "gcp" or "azure"
	Region         string
	Namespace      string
	EmbeddingModel string
	Dimension      int

	// ReadyTimeout bounds the wait for a new index to become queryable.
	ReadyTimeout time.Duration

	// ControllerHost overrides the control-plane URL (https://api.pinecone.io).
	ControllerHost string
}

// PineconeStorage stores records in a Pinecone serverless index.
type PineconeStorage struct {
	client *pinecone.Client
	conn   *pinecone.IndexConnection
	cfg    PineconeConfig
	logger *slog.Logger
}

// NewPineconeStorage creates a control-plane client. No network call is
// made until EnsureIndex.
func NewPineconeStorage(cfg PineconeConfig, logger *slog.Logger) (*PineconeStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = VectorDimension
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
		Host:   cfg.ControllerHost,
	})
	if err != nil {
		return nil, errs.Configuration("create pinecone client: %v", err)
	}

	return &PineconeStorage{client: client, cfg: cfg, logger: logger}, nil
}

// EnsureIndex creates the serverless index (cosine metric, configured
// dimension, model tag) when it does not exist, waits until it is ready and
// opens a data-plane connection scoped to the namespace.
func (s *PineconeStorage) EnsureIndex(ctx context.Context) error {
	indexes, err := s.client.ListIndexes(ctx)
	if err != nil {
		return errs.External("list pinecone indexes", err)
	}

	idx := findIndex(indexes, s.cfg.IndexName)
	if idx == nil {
		dimension := int32(s.cfg.Dimension)
		metric := pinecone.Cosine
		tags := pinecone.IndexTags{FieldEmbeddingModel: ModelMarker(s.cfg.EmbeddingModel)}

		idx, err = s.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
			Name:      s.cfg.IndexName,
			Dimension: &dimension,
			Metric:    &metric,
			Cloud:     pinecone.Cloud(s.cfg.Cloud),
			Region:    s.cfg.Region,
			Tags:      &tags,
		})
		if err != nil {
			return errs.External("create pinecone index", err)
		}
		s.logger.Info("Created Pinecone index",
			"index", s.cfg.IndexName,
			"dimension", s.cfg.Dimension,
			"cloud", s.cfg.Cloud,
			"region", s.cfg.Region)
	}

	idx, err = s.waitReady(ctx, idx)
	if err != nil {
		return err
	}
	if err := checkIndexSettings(idx, s.cfg.Dimension, s.logger); err != nil {
		return err
	}

	conn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      idx.Host,
		Namespace: s.cfg.Namespace,
	})
	if err != nil {
		return errs.External("connect to pinecone index", err)
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn

	return nil
}

// waitReady polls the index description until Pinecone reports it ready.
func (s *PineconeStorage) waitReady(ctx context.Context, idx *pinecone.Index) (*pinecone.Index, error) {
	if isReady(idx) {
		return idx, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = s.cfg.ReadyTimeout

	operation := func() error {
		described, err := s.client.DescribeIndex(ctx, s.cfg.IndexName)
		if err != nil {
			return err
		}
		if !isReady(described) {
			return ErrIndexNotReady
		}
		idx = described
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, errs.External("wait for pinecone index", fmt.Errorf("%w: %v", ErrIndexNotReady, err))
	}
	return idx, nil
}

// EmbeddingModel returns the embedding_model tag of the index.
func (s *PineconeStorage) EmbeddingModel(ctx context.Context) (string, error) {
	idx, err := s.client.DescribeIndex(ctx, s.cfg.IndexName)
	if err != nil {
		return "", errs.External("describe pinecone index", err)
	}
	if idx.Tags == nil {
		return "", nil
	}
	return (*idx.Tags)[FieldEmbeddingModel], nil
}

// Upsert writes records in batches of 100.
func (s *PineconeStorage) Upsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := checkDimensions(records, s.cfg.Dimension); err != nil {
		return err
	}

	for i := 0; i < len(records); i += pineconeBatchSize {
		end := min(i+pineconeBatchSize, len(records))

		vectors, err := toPineconeVectors(records[i:end], s.cfg.EmbeddingModel)
		if err != nil {
			return err
		}
		if _, err := s.conn.UpsertVectors(ctx, vectors); err != nil {
			return errs.External(fmt.Sprintf("pinecone upsert batch %d-%d", i, end), err)
		}
	}

	return nil
}

// Query returns the topK nearest records within the namespace.
func (s *PineconeStorage) Query(ctx context.Context, vector []float32, topK int) ([]*ScoredRecord, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if err := checkQueryDimension(vector, s.cfg.Dimension); err != nil {
		return nil, err
	}

	resp, err := s.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, errs.External("pinecone query", err)
	}

	return fromPineconeMatches(resp.Matches), nil
}

// Close closes the data-plane connection.
func (s *PineconeStorage) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func findIndex(indexes []*pinecone.Index, name string) *pinecone.Index {
	for _, idx := range indexes {
		if idx != nil && idx.Name == name {
			return idx
		}
	}
	return nil
}

func isReady(idx *pinecone.Index) bool {
	return idx != nil && idx.Status != nil && idx.Status.Ready
}

// checkIndexSettings rejects an existing index whose dimension differs from
// the embedder's. A non-cosine metric only warrants a warning.
func checkIndexSettings(idx *pinecone.Index, dimension int, logger *slog.Logger) error {
	if idx.Dimension != nil && int(*idx.Dimension) != dimension {
		return fmt.Errorf("%w: index %s has dimension %d, embeddings have %d",
			ErrDimensionMismatch, idx.Name, *idx.Dimension, dimension)
	}
	if idx.Metric != pinecone.Cosine {
		logger.Warn("Pinecone index does not use cosine similarity",
			"index", idx.Name,
			"metric", idx.Metric)
	}
	return nil
}

func toPineconeVectors(records []*Record, model string) ([]*pinecone.Vector, error) {
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, r := range records {
		metadata, err := structpb.NewStruct(map[string]any{
			FieldText:           r.Text,
			FieldSource:         r.Source,
			FieldChunkIndex:     r.ChunkIndex,
			FieldEmbeddingModel: ModelMarker(model),
		})
		if err != nil {
			return nil, fmt.Errorf("build metadata for %s: %w", r.ID, err)
		}

		values := r.Vector
		vectors = append(vectors, &pinecone.Vector{
			Id:       r.ID,
			Values:   &values,
			Metadata: metadata,
		})
	}
	return vectors, nil
}

func fromPineconeMatches(matches []*pinecone.ScoredVector) []*ScoredRecord {
	results := make([]*ScoredRecord, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Vector == nil {
			continue
		}
		fields := m.Vector.Metadata.GetFields()

		results = append(results, &ScoredRecord{
			Record: &Record{
				ID:         m.Vector.Id,
				Source:     fields[FieldSource].GetStringValue(),
				ChunkIndex: int(fields[FieldChunkIndex].GetNumberValue()),
				Text:       fields[FieldText].GetStringValue(),
			},
			Score: float64(m.Score),
		})
	}
	return results
}
