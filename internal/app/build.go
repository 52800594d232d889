package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/bull/pdf-assistant/internal/answer"
	"github.com/bull/pdf-assistant/internal/chunker"
	"github.com/bull/pdf-assistant/internal/config"
	"github.com/bull/pdf-assistant/internal/embedding"
	"github.com/bull/pdf-assistant/internal/errs"
	"github.com/bull/pdf-assistant/internal/loader"
	"github.com/bull/pdf-assistant/internal/storage"
)

// Build creates an App from validated configuration. It connects to the
// configured backends but does not index; call Bootstrap for that.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	index, err := newIndex(ctx, cfg, embedder.Model(), logger)
	if err != nil {
		closeEmbedder(embedder)
		return nil, err
	}

	generator, err := answer.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GenerativeModel)
	if err != nil {
		index.Close()
		closeEmbedder(embedder)
		return nil, err
	}

	logger.Info("Assistant configured",
		"backend", cfg.VectorBackend,
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_model", embedder.Model(),
		"generative_model", cfg.GenerativeModel,
		"documents_dir", cfg.DocumentsDir)

	return New(Components{
		DocumentsDir: cfg.DocumentsDir,
		Loader:       loader.New(loader.PDFExtractor{}, cfg.StrictIngestion, logger),
		Chunker:      ch,
		Embedder:     embedder,
		Index:        index,
		Generator:    generator,
		TopK:         cfg.TopK,
	}, logger), nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		return embedding.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	case config.ProviderHuggingFace:
		return embedding.NewHuggingFaceEmbedder(cfg.HuggingFaceToken, cfg.EmbeddingModel, cfg.HuggingFaceURL)
	case config.ProviderOpenAI:
		return embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, embedding.DefaultBatchSize)
	default:
		return nil, errs.Configuration("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func newIndex(ctx context.Context, cfg *config.Config, model string, logger *slog.Logger) (storage.VectorIndex, error) {
	switch cfg.VectorBackend {
	case config.BackendPinecone:
		return storage.NewPineconeStorage(storage.PineconeConfig{
			APIKey:         cfg.PineconeAPIKey,
			IndexName:      cfg.PineconeIndexName,
			Cloud:          cfg.PineconeCloud,
			Region:         cfg.PineconeRegion,
			Namespace:      cfg.Namespace,
			EmbeddingModel: model,
			Dimension:      embedding.Dimension,
		}, logger)
	case config.BackendQdrant:
		return storage.NewQdrantStorage(ctx, storage.QdrantConfig{
			Host:           cfg.QdrantHost,
			Port:           cfg.QdrantPort,
			Collection:     cfg.PineconeIndexName,
			Namespace:      cfg.Namespace,
			EmbeddingModel: model,
			Dimension:      embedding.Dimension,
		}, logger)
	case config.BackendChromem:
		return storage.NewChromemStorage(storage.ChromemConfig{
			Path:           cfg.ChromemPath,
			IndexName:      cfg.PineconeIndexName,
			Namespace:      cfg.Namespace,
			EmbeddingModel: model,
			Dimension:      embedding.Dimension,
		}, logger)
	default:
		return nil, errs.Configuration("unknown vector backend %q", cfg.VectorBackend)
	}
}

func closeEmbedder(e embedding.Provider) {
	if c, ok := e.(io.Closer); ok {
		_ = c.Close()
	}
}
