// Package errs defines the error kinds shared across the assistant.
//
// Callers classify failures with errors.Is; every layer wraps with %w so the
// kind survives up to the process entry point or HTTP handler.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing or invalid configuration. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrIngestion marks an unreadable document directory or PDF.
	ErrIngestion = errors.New("ingestion error")

	// ErrExternalService marks a failed call to the embedding provider,
	// vector index, or generative model.
	ErrExternalService = errors.New("external service error")
)

// Configuration wraps err as a configuration error.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// External wraps err from the named operation as an external service error.
func External(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
}

// Ingestion wraps err from the named operation as an ingestion error.
func Ingestion(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIngestion, err)
}
