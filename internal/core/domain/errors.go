package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition indicates an illegal library status transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrProcessingInProgress indicates a pipeline run is already active
	// for the library.
	ErrProcessingInProgress = errors.New("processing in progress")

	// External Service Errors.

	// ErrRateLimited indicates the service rejected a call due to rate limits.
	// Callers back off exponentially before retrying.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError indicates a transient upstream failure (5xx).
	// Callers back off a fixed interval before retrying.
	ErrServerError = errors.New("server error")

	// ErrMalformedResponse indicates the service returned output that
	// failed schema validation. Not retryable.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnderstandingUnavailable indicates the text-understanding service
	// is not configured. Chunking, extraction, enrichment and mapping are
	// disabled without it.
	ErrUnderstandingUnavailable = errors.New("understanding service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Indexing and semantic retrieval are disabled.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Data Integrity Errors.

	// ErrDanglingPrerequisite indicates a prerequisite edge referencing a
	// concept absent from the node set.
	ErrDanglingPrerequisite = errors.New("dangling prerequisite")

	// ErrDimensionMismatch indicates embedding vectors in one run diverged
	// in model or dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
