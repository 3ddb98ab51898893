// Package errs defines the error kinds the engine distinguishes and the
// retry helper used at every upstream boundary (LLM, embeddings, storage).
package errs

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify with errors.Is.
var (
	// ErrTransientUpstream marks 5xx/timeout failures from the LLM,
	// embedding backend or document store. Retried with backoff; a single
	// item never fails the whole job.
	ErrTransientUpstream = errors.New("transient upstream failure")

	// ErrInvariantViolation marks data-model violations: non-unit
	// embedding, wrong dimensionality, missing parent. Fails fast, writes
	// nothing.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrParseFailure marks an unavailable or incomplete syntax tree. The
	// file degrades to a whole-file chunk.
	ErrParseFailure = errors.New("parse failure")

	// ErrIndexUnavailable is surfaced when the search index is missing at
	// query time. Not retried.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrSearchUnavailable is surfaced after a transient search error
	// survived one retry.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrCancelled is returned when a job observes its cancel signal at a
	// checkpoint.
	ErrCancelled = errors.New("job cancelled")
)

// Transient wraps err as a transient upstream failure.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientUpstream, err)
}

// Invariant reports a data-model violation.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientUpstream)
}
