package llm

import "errors"

var (
	// ErrEmbeddingTimeout is returned when an embedding request exceeds its deadline.
	ErrEmbeddingTimeout = errors.New("embedding request timed out")
	// ErrEmbeddingProvider is returned when the embedding provider fails for any other reason.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrDimensionMismatch is returned when two vectors of unequal length are compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
