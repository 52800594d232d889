package storage

import (
	"errors"
	"fmt"

	"github.com/bull/pdf-assistant/internal/errs"
)

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrIndexNotReady     = errors.New("vector index not ready")
	ErrNotConnected      = errors.New("vector index not initialised, call EnsureIndex first")

	// Both mismatches are configuration problems: the index was built with
	// different settings than the running process uses.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", errs.ErrConfiguration)
	ErrModelMismatch     = fmt.Errorf("%w: embedding model mismatch", errs.ErrConfiguration)
)
