package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/pdf-assistant/internal/loader"
)

// FailedFile represents a PDF that could not be downloaded.
type FailedFile struct {
	Path   string
	Reason string
}

// FetchResult summarises a FetchAll run.
type FetchResult struct {
	CommitSHA  string
	Downloaded []string // Local file paths written
	Failed     []FailedFile
}

// Fetcher copies PDFs from one repository directory.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	logger   *slog.Logger
}

// NewFetcher creates a fetcher for owner/repo at basePath ("" is the root).
func NewFetcher(client *Client, owner, repo, basePath string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: strings.Trim(basePath, "/"),
		logger:   logger,
	}
}

// ParseRepo splits "owner/name".
func ParseRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", s)
	}
	return owner, repo, nil
}

// ListPDFs lists the PDF files directly inside the base directory.
// Subdirectories are not descended into, mirroring the local loader.
func (f *Fetcher) ListPDFs(ctx context.Context) ([]string, error) {
	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, f.basePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", f.displayPath(), err)
	}

	var pdfs []string
	for _, item := range dirContents {
		if item.GetType() != "file" || !loader.IsPDF(item.GetName()) {
			continue
		}
		pdfs = append(pdfs, item.GetPath())
	}
	return pdfs, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the directory.
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.owner, f.repo, &github.CommitsListOptions{
		Path:        f.basePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %s", f.displayPath())
	}
	return commits[0].GetSHA(), nil
}

// Download writes the file at repoPath into destDir under its base name and
// returns the local path. The file appears atomically.
func (f *Fetcher) Download(ctx context.Context, repoPath, destDir string) (string, error) {
	rc, _, err := f.client.Repositories.DownloadContents(ctx, f.owner, f.repo, repoPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", repoPath, err)
	}
	defer rc.Close()

	dest := filepath.Join(destDir, path.Base(repoPath))
	tmp, err := os.CreateTemp(destDir, ".docsync-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("rename into %s: %w", dest, err)
	}

	return dest, nil
}

// FetchAll downloads every top-level PDF into destDir, creating it if needed.
// Individual download failures are recorded and skipped.
func (f *Fetcher) FetchAll(ctx context.Context, destDir string) (*FetchResult, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	result := &FetchResult{}

	sha, err := f.GetLatestCommitSHA(ctx)
	if err != nil {
		return nil, fmt.Errorf("get commit SHA: %w", err)
	}
	result.CommitSHA = sha

	pdfs, err := f.ListPDFs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list PDFs: %w", err)
	}
	f.logger.Info("Found PDFs", "repo", f.owner+"/"+f.repo, "path", f.displayPath(), "count", len(pdfs), "commit", sha)

	for _, p := range pdfs {
		local, err := f.Download(ctx, p, destDir)
		if err != nil {
			f.logger.Warn("Failed to download PDF", "path", p, "error", err)
			result.Failed = append(result.Failed, FailedFile{Path: p, Reason: err.Error()})
			continue
		}
		f.logger.Debug("Downloaded PDF", "path", p, "dest", local)
		result.Downloaded = append(result.Downloaded, local)
	}

	return result, nil
}

func (f *Fetcher) displayPath() string {
	if f.basePath == "" {
		return "/"
	}
	return f.basePath
}
