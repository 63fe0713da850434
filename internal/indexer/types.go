package indexer

// Content types a chunk can carry, classified from the leading syntax of
// the accumulated section content.
const (
	ContentTypeText  = "text"
	ContentTypeCode  = "code"
	ContentTypeTable = "table"
	ContentTypeList  = "list"
	ContentTypeQuote = "quote"
)

// Chunk is a bounded span of markdown content tagged with its position in
// the heading hierarchy. Chunks are immutable and never persisted on their
// own; they only materialize as stored points once embedded.
type Chunk struct {
	Content      string
	Chapter      string // nearest ancestor heading at level 1, if any
	Section      string // nearest ancestor heading at level 2, if any
	HeadingLevel int    // 0 for pre-heading content
	HeadingText  string
	Index        int // position within the document, 0..TotalChunks-1
	TotalChunks  int
	ContentType  string
	CharCount    int // rune count of Content
}

// IndexResult reports the outcome of an indexing call. Failures are
// reported here rather than raised, so a background caller can record a
// structured failure without crashing.
type IndexResult struct {
	Success       bool
	ChunksIndexed int
	Error         string
}

// ResearchSource is externally gathered material scoped to one document.
type ResearchSource struct {
	SourceID   string
	DocumentID string
	Content    string
	SourceType string // web, api, database
	Relevance  string // background_research, direct_reference, citation
}
