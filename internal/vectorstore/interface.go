package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks draftmind/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the vector store cannot be reached.
// Callers degrade the vector-feature surface instead of crashing.
var ErrUnavailable = errors.New("vector store unavailable")

// Payload is the typed metadata stored alongside a vector. The gateway maps
// the store's loosely-typed payloads into this struct at the boundary so
// upstream code never handles untyped maps. Fields that do not apply to a
// given point kind are zero-valued.
type Payload struct {
	DocumentID string
	Version    int
	Title      string
	Content    string
	CreatedAt  string

	// Chunk metadata.
	Chapter      string
	Section      string
	HeadingLevel int
	HeadingText  string
	ChunkIndex   int
	TotalChunks  int
	ContentType  string
	CharCount    int

	// Summary metadata.
	Level          int
	ParentChunkIDs []string

	// Research-source and upload metadata.
	SourceID   string
	SourceType string
	Relevance  string
	UserID     string
}

// Point represents a vector point with its payload.
type Point struct {
	ID      string
	Vec     []float32
	Payload Payload
}

// SearchResult represents one hit from a search or scroll.
type SearchResult struct {
	PointID string
	Score   float32
	Payload Payload
}

// Filter narrows a search, scroll, or delete. Zero-valued fields are ignored.
type Filter struct {
	DocumentID  string
	DocumentIDs []string
	UserID      string
	SourceID    string
	SourceType  string
	Chapter     string
	Section     string
	ContentType string
	Level       int
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f.DocumentID == "" && len(f.DocumentIDs) == 0 && f.UserID == "" &&
		f.SourceID == "" && f.SourceType == "" && f.Chapter == "" &&
		f.Section == "" && f.ContentType == "" && f.Level == 0
}

// VectorStore defines the gateway over the vector database.
type VectorStore interface {
	// EnsureCollection creates the collection if missing (cosine distance,
	// fixed vector size) and validates the size if it already exists.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or updates points, waiting for durability.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Delete removes all points matching the filter.
	Delete(ctx context.Context, collection string, filter Filter) error

	// DeleteByDocument removes all points belonging to a document.
	DeleteByDocument(ctx context.Context, collection, documentID string) error

	// Search returns up to limit results above scoreThreshold, in
	// descending similarity order.
	Search(ctx context.Context, collection string, query []float32, filter Filter, limit int, scoreThreshold float32) ([]SearchResult, error)

	// Scroll reads up to limit points matching the filter, unordered,
	// without similarity scoring.
	Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]SearchResult, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}
