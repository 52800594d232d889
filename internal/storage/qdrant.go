package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/pdf-assistant/internal/errs"
)

// QdrantConfig locates a Qdrant server and the collection to use.
type QdrantConfig struct {
	Host           string
	Port           int
	Collection     string
	Namespace      string
	EmbeddingModel string
	Dimension      int
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
// Namespaces share one collection and are separated by a payload filter.
type QdrantStorage struct {
	client *qdrant.Client
	cfg    QdrantConfig
	logger *slog.Logger
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*QdrantStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = VectorDimension
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, errs.Configuration("create qdrant client: %v", err)
	}

	storage := &QdrantStorage{client: client, cfg: cfg, logger: logger}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, errs.External("qdrant health check", fmt.Errorf("%w: %v", ErrQdrantUnreachable, err))
	}

	return storage, nil
}

// healthCheckWithRetry waits for the server to come up.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error { return s.Health(ctx) }, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureIndex creates the collection with cosine vectors and keyword
// payload indexes when it does not exist. An existing collection is checked
// for the vector size and otherwise left alone.
func (s *QdrantStorage) EnsureIndex(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return errs.External("list qdrant collections", err)
	}

	for _, name := range collections {
		if name == s.cfg.Collection {
			return s.checkCollection(ctx)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errs.External("create qdrant collection", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return errs.External("create qdrant payload indexes", err)
	}

	s.logger.Info("Created Qdrant collection",
		"collection", s.cfg.Collection,
		"dimension", s.cfg.Dimension)
	return nil
}

func (s *QdrantStorage) checkCollection(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return errs.External("get qdrant collection", err)
	}

	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != uint64(s.cfg.Dimension) {
		return fmt.Errorf("%w: collection %s has dimension %d, embeddings have %d",
			ErrDimensionMismatch, s.cfg.Collection, size, s.cfg.Dimension)
	}
	return nil
}

// createPayloadIndexes indexes the fields used in filters.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	for _, field := range []string{FieldNamespace, FieldSource} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// EmbeddingModel reads the model marker from any point in the namespace.
// Returns "" when the namespace is empty.
func (s *QdrantStorage) EmbeddingModel(ctx context.Context) (string, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Filter:         s.namespaceFilter(),
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayloadInclude(FieldEmbeddingModel),
	})
	if err != nil {
		return "", errs.External("qdrant scroll", err)
	}

	if len(results) == 0 {
		return "", nil
	}
	return results[0].Payload[FieldEmbeddingModel].GetStringValue(), nil
}

// Upsert stores records in batches of 100 and waits for them to be applied.
func (s *QdrantStorage) Upsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records, s.cfg.Dimension); err != nil {
		return err
	}

	marker := ModelMarker(s.cfg.EmbeddingModel)
	batchSize := 100
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		batch := records[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, r := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(r.ID),
				Vectors: qdrant.NewVectors(r.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					FieldText:           r.Text,
					FieldSource:         r.Source,
					FieldChunkIndex:     r.ChunkIndex,
					FieldNamespace:      s.cfg.Namespace,
					FieldEmbeddingModel: marker,
				}),
			}
		}

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return errs.External(fmt.Sprintf("qdrant upsert batch %d-%d", i, end), err)
		}
	}

	return nil
}

// Query performs vector similarity search within the namespace.
func (s *QdrantStorage) Query(ctx context.Context, vector []float32, topK int) ([]*ScoredRecord, error) {
	if err := checkQueryDimension(vector, s.cfg.Dimension); err != nil {
		return nil, err
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         s.namespaceFilter(),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, errs.External("qdrant query", err)
	}

	scored := make([]*ScoredRecord, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		scored = append(scored, &ScoredRecord{
			Record: &Record{
				ID:         result.Id.GetUuid(),
				Source:     payload[FieldSource].GetStringValue(),
				ChunkIndex: int(payload[FieldChunkIndex].GetIntegerValue()),
				Text:       payload[FieldText].GetStringValue(),
			},
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *QdrantStorage) namespaceFilter() *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(FieldNamespace, s.cfg.Namespace),
		},
	}
}
