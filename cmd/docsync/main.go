// Package main provides docsync, a CLI for preparing the PDF assistant's
// document index outside the server process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/pdf-assistant/internal/app"
	"github.com/bull/pdf-assistant/internal/config"
	ghclient "github.com/bull/pdf-assistant/internal/github"
	"github.com/bull/pdf-assistant/internal/logging"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := newRootCmd(os.Getenv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:   "docsync",
		Short: "PDF assistant indexing tool",
		Long:  "CLI tool for fetching PDFs and building the PDF assistant's vector index",
	}
	root.AddCommand(newIndexCmd(getenv), newFetchCmd(getenv))
	return root
}

func newIndexCmd(getenv func(string) string) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index the documents folder once",
		Long: `Builds or refreshes the vector index from the PDFs in DOCUMENTS_DIR.

This command:
1. Validates the configuration (same variables as the server)
2. Creates the vector index if it does not exist
3. Extracts, chunks and embeds every PDF
4. Upserts the chunks; re-running overwrites instead of duplicating

Environment variables:
  PINECONE_API_KEY, PINECONE_INDEX_NAME,
  PINECONE_CLOUD, PINECONE_REGION  Pinecone index (pinecone backend)
  GEMINI_API_KEY                    Gemini API key (required)
  HUGGINGFACEHUB_API_TOKEN          embedding API token (huggingface provider)
  VECTOR_BACKEND                    pinecone, qdrant or chromem (default: pinecone)
  DOCUMENTS_DIR                     PDF folder (default: Documents)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, getenv)
		},
	}
}

func runIndex(cmd *cobra.Command, getenv func(string) string) error {
	out := cmd.OutOrStdout()
	start := time.Now()

	cfg, err := loadConfig(getenv)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	fmt.Fprintf(out, "Indexing %s into %s (%s backend)...\n", cfg.DocumentsDir, cfg.PineconeIndexName, cfg.VectorBackend)

	assistant, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up indexing: %w", err)
	}
	defer assistant.Close()

	result, err := assistant.Bootstrap(cmd.Context())
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Index complete!")
	fmt.Fprintf(out, "  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
	fmt.Fprintf(out, "  Upserted: %d\n", result.Upserted)
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Source, failed.Reason)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func newFetchCmd(getenv func(string) string) *cobra.Command {
	var repo, dir, dest string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download PDFs from a GitHub directory",
		Long: `Downloads the PDF files directly inside a GitHub repository directory
into the documents folder. Subdirectories are ignored. Existing files with
the same name are replaced.

Environment variables:
  DOCUMENTS_DIR  destination folder when --dest is not given (default: Documents)
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := ghclient.ParseRepo(repo)
			if err != nil {
				return err
			}

			// Model keys are not needed here, so only Load, not Validate.
			cfg, err := config.Load(getenv)
			if err != nil {
				return err
			}
			if dest == "" {
				dest = cfg.DocumentsDir
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			client, err := ghclient.NewClient(cfg.GitHubToken)
			if err != nil {
				return fmt.Errorf("failed to create GitHub client: %w", err)
			}
			fetcher := ghclient.NewFetcher(client, owner, name, dir, logger)

			result, err := fetcher.FetchAll(cmd.Context(), dest)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			printFetchResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository as owner/name (required)")
	cmd.Flags().StringVar(&dir, "path", "", "directory inside the repository (default: root)")
	cmd.Flags().StringVar(&dest, "dest", "", "destination folder (default: DOCUMENTS_DIR)")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func printFetchResult(cmd *cobra.Command, result *ghclient.FetchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Fetch complete!")
	fmt.Fprintf(out, "  Commit: %s\n", result.CommitSHA)
	fmt.Fprintf(out, "  Downloaded: %d\n", len(result.Downloaded))
	for _, path := range result.Downloaded {
		fmt.Fprintf(out, "  + %s\n", path)
	}
	if len(result.Failed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed files:")
		for _, failed := range result.Failed {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
}

func loadConfig(getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
