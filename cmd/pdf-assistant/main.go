// Package main runs the PDF assistant: it indexes the documents folder, then
// serves the question form.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/pdf-assistant/internal/app"
	"github.com/bull/pdf-assistant/internal/config"
	"github.com/bull/pdf-assistant/internal/logging"
	"github.com/bull/pdf-assistant/internal/web"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	os.Exit(run(ctx, os.Getenv, os.Stderr))
}

// run returns the process exit code. Configuration is validated before any
// document is read or any service is contacted.
func run(ctx context.Context, getenv func(string) string, stderr io.Writer) int {
	cfg, err := config.Load(getenv)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)

	assistant, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start assistant", "error", err)
		return 1
	}
	defer assistant.Close()

	logger.Info("Indexing documents, this can take a while", "dir", cfg.DocumentsDir)
	result, err := assistant.Bootstrap(ctx)
	if err != nil {
		logger.Error("Indexing failed", "error", err)
		return 1
	}
	logger.Info("Indexing finished",
		"documents", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks)

	handler := web.NewHandler(assistant, web.Options{
		Model:         cfg.GenerativeModel,
		DocumentsDir:  cfg.DocumentsDir,
		MaxConcurrent: cfg.MaxConcurrentQueries,
	}, logger)

	if err := web.Serve(ctx, cfg.Addr(), handler, logger); err != nil {
		logger.Error("HTTP server error", "error", err)
		return 1
	}
	return 0
}
