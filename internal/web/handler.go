// Package web serves the single-page question form.
package web

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/sync/semaphore"

	"github.com/bull/pdf-assistant/internal/app"
)

// Asker answers a question. *app.App implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (*app.Answer, error)
}

// Options configure the handler.
type Options struct {
	Model        string // shown in the page title
	DocumentsDir string
	// MaxConcurrent bounds in-flight questions; 0 means unbounded.
	MaxConcurrent int
}

// Handler renders the form on GET / and answers it on POST /.
type Handler struct {
	asker    Asker
	opts     Options
	markdown goldmark.Markdown
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

// NewHandler creates the form handler.
func NewHandler(asker Asker, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		asker:    asker,
		opts:     opts,
		markdown: goldmark.New(),
		logger:   logger,
	}
	if opts.MaxConcurrent > 0 {
		h.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render(w, pageData{})
	case http.MethodPost:
		h.answer(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		h.render(w, pageData{})
		return
	}

	if h.sem != nil {
		// Acquire only fails when the client has gone away.
		if err := h.sem.Acquire(r.Context(), 1); err != nil {
			return
		}
		defer h.sem.Release(1)
	}

	ans, err := h.asker.Ask(r.Context(), question)
	if err != nil {
		h.logger.Error("Failed to answer question", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(ans.Text), &buf); err != nil {
		h.logger.Error("Failed to render answer", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.render(w, pageData{
		Question: question,
		Answer:   template.HTML(buf.String()),
	})
}

func (h *Handler) render(w http.ResponseWriter, data pageData) {
	data.Model = h.opts.Model
	data.DocumentsDir = h.opts.DocumentsDir

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render page", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
