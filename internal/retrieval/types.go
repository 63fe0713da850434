package retrieval

import "draftmind/internal/vectorstore"

// Result sources, in priority order.
const (
	SourceCurrentDoc    = "current_doc"
	SourceOtherDocs     = "other_docs"
	SourceUploadedFiles = "uploaded_files"
)

// ChunkMatch is one scored chunk returned from a filtered search.
type ChunkMatch struct {
	PointID string
	Content string
	Score   float32
	Payload vectorstore.Payload
}

// ContextResult is one entry of a blended multi-source search.
// WeightedScore is the raw similarity scaled by the source's fixed
// priority weight; blending sorts on it.
type ContextResult struct {
	Content       string
	Score         float32
	WeightedScore float32
	Source        string
	Payload       vectorstore.Payload
}

// SearchOptions narrows a chunk search.
type SearchOptions struct {
	DocumentID     string
	Limit          int
	ScoreThreshold float32
	Chapter        string
	Section        string
	ContentType    string
}

// ContextOptions tunes a blended user-context search. Zero values use the
// engine defaults.
type ContextOptions struct {
	Limit          int
	ScoreThreshold float32
}
