// Package loader reads the PDF files of a document folder into plain text.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/pdf-assistant/internal/errs"
)

// Document is the full extracted text of one PDF, tagged with its filename.
type Document struct {
	Source string // Filename without directory: "report.pdf"
	Text   string // Page texts concatenated in page order
}

// FailedDoc records a PDF that could not be read.
type FailedDoc struct {
	Source string
	Reason string
}

// Result is the outcome of loading a folder.
type Result struct {
	Documents []Document
	Failed    []FailedDoc
}

// Extractor pulls the plain text out of a single file.
type Extractor interface {
	Extract(path string) (string, error)
}

// Loader scans a directory (non-recursively) for PDF files.
type Loader struct {
	extractor Extractor
	strict    bool
	logger    *slog.Logger
}

// New creates a Loader. When strict is set, an unreadable PDF aborts the
// whole load instead of being skipped with a warning.
func New(extractor Extractor, strict bool, logger *slog.Logger) *Loader {
	if extractor == nil {
		extractor = PDFExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		extractor: extractor,
		strict:    strict,
		logger:    logger,
	}
}

// Load extracts every file in dir with a case-insensitive .pdf extension,
// in filename order. Subdirectories are ignored.
func (l *Loader) Load(ctx context.Context, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Ingestion(fmt.Sprintf("read directory %s", dir), err)
	}

	result := &Result{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !IsPDF(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		text, err := l.extractor.Extract(path)
		if err != nil {
			if l.strict {
				return nil, errs.Ingestion(fmt.Sprintf("extract %s", entry.Name()), err)
			}
			l.logger.Warn("Skipping unreadable PDF", "source", entry.Name(), "error", err)
			result.Failed = append(result.Failed, FailedDoc{
				Source: entry.Name(),
				Reason: err.Error(),
			})
			continue
		}

		l.logger.Debug("Loaded document", "source", entry.Name(), "chars", len(text))
		result.Documents = append(result.Documents, Document{
			Source: entry.Name(),
			Text:   text,
		})
	}

	return result, nil
}

// IsPDF reports whether name has a .pdf extension, ignoring case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
