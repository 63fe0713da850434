package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks draftmind/internal/llm Embedder,SummaryProvider

import "context"

// Task types hint how a vector will be used. They are passed through to the
// embedding provider and participate in the cache key, so a query embedding
// and a document embedding of the same text are cached independently.
const (
	TaskRetrievalQuery     = "RETRIEVAL_QUERY"
	TaskRetrievalDocument  = "RETRIEVAL_DOCUMENT"
	TaskSemanticSimilarity = "SEMANTIC_SIMILARITY"
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// GenerateEmbedding returns one vector for the given text.
	GenerateEmbedding(ctx context.Context, text, taskType string) ([]float32, error)

	// GenerateEmbeddingBatch returns one vector per input text, in order.
	// The whole call fails if any single item fails.
	GenerateEmbeddingBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)

	// Dimension returns the vector size this embedder produces.
	Dimension() int
}

// SummaryProvider condenses text to roughly the requested word count.
type SummaryProvider interface {
	Summarize(ctx context.Context, text string, targetWords int) (string, error)
}
