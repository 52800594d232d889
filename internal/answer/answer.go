// Package answer turns a question and its retrieved context into a prompt
// and asks a generative model for the answer.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// promptTemplate is filled with the joined context, then the question.
const promptTemplate = `You are an assistant specialised in PDF documents.
Use only the text below to answer the question clearly and precisely.

Text:
%s

Question: %s
Answer:`

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt joins texts with blank lines, in the given order, and places
// them and the question into the fixed answer template. An empty texts slice
// leaves the context section empty.
func BuildPrompt(question string, texts []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(texts, "\n\n"), question)
}

// Composer asks a Generator to answer questions from retrieved context.
type Composer struct {
	generator Generator
	logger    *slog.Logger
}

// NewComposer creates a Composer.
func NewComposer(generator Generator, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{generator: generator, logger: logger}
}

// Compose returns the model's answer verbatim.
func (c *Composer) Compose(ctx context.Context, question string, texts []string) (string, error) {
	start := time.Now()

	text, err := c.generator.Generate(ctx, BuildPrompt(question, texts))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	c.logger.Debug("Generated answer",
		"context_chunks", len(texts),
		"answer_chars", len(text),
		"duration", time.Since(start))
	return text, nil
}
