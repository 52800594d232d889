// Package app holds the assistant's wiring: the components built at startup
// and the Indexing → Ready lifecycle the HTTP layer depends on.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bull/pdf-assistant/internal/answer"
	"github.com/bull/pdf-assistant/internal/chunker"
	"github.com/bull/pdf-assistant/internal/embedding"
	"github.com/bull/pdf-assistant/internal/indexer"
	"github.com/bull/pdf-assistant/internal/loader"
	"github.com/bull/pdf-assistant/internal/retriever"
	"github.com/bull/pdf-assistant/internal/storage"
)

// State is the lifecycle phase of an App.
type State int32

const (
	StateIndexing State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrNotReady is returned by Ask until Bootstrap has completed.
var ErrNotReady = errors.New("assistant is still indexing documents")

// Answer is the result of one question.
type Answer struct {
	Text    string                  // Model output, verbatim
	Prompt  string                  // Prompt sent to the model
	Context []*storage.ScoredRecord // Retrieved chunks, best first
}

// Components are the collaborators an App is assembled from.
type Components struct {
	DocumentsDir string
	Loader       *loader.Loader
	Chunker      *chunker.Chunker
	Embedder     embedding.Provider
	Index        storage.VectorIndex
	Generator    answer.Generator
	TopK         int
}

// App answers questions about the PDFs of one folder.
type App struct {
	state     atomic.Int32
	pipeline  *indexer.Pipeline
	retriever *retriever.Retriever
	composer  *answer.Composer
	closers   []io.Closer
	logger    *slog.Logger
}

// New assembles an App in StateIndexing. The App owns c.Index and, when they
// implement io.Closer, c.Embedder and c.Generator.
func New(c Components, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		pipeline:  indexer.NewPipeline(c.DocumentsDir, c.Loader, c.Chunker, c.Embedder, c.Index, logger),
		retriever: retriever.New(c.Embedder, c.Index, c.TopK, logger),
		composer:  answer.NewComposer(c.Generator, logger),
		logger:    logger,
	}
	a.closers = append(a.closers, c.Index)
	if closer, ok := c.Embedder.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}
	if closer, ok := c.Generator.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}
	return a
}

// State reports the current lifecycle phase.
func (a *App) State() State {
	return State(a.state.Load())
}

// Bootstrap indexes the documents folder and, on success, moves the App to
// StateReady. On failure the App stays in StateIndexing.
func (a *App) Bootstrap(ctx context.Context) (*indexer.IndexResult, error) {
	result, err := a.pipeline.IndexAll(ctx)
	if err != nil {
		return nil, err
	}

	a.state.Store(int32(StateReady))
	a.logger.Info("Assistant ready", "chunks", result.TotalChunks)
	return result, nil
}

// Ask retrieves context for question and asks the model for an answer.
func (a *App) Ask(ctx context.Context, question string) (*Answer, error) {
	if a.State() != StateReady {
		return nil, ErrNotReady
	}
	start := time.Now()

	records, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	texts := retriever.Texts(records)

	text, err := a.composer.Compose(ctx, question, texts)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Answered question",
		"context_chunks", len(records),
		"duration", time.Since(start))

	return &Answer{
		Text:    text,
		Prompt:  answer.BuildPrompt(question, texts),
		Context: records,
	}, nil
}

// Close releases the vector index, embedder and generator connections.
func (a *App) Close() error {
	var errList []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
