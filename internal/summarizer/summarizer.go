package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"draftmind/internal/contextutil"
	"draftmind/internal/indexer"
	"draftmind/internal/llm"
	"draftmind/internal/vectorstore"
)

const (
	// DefaultBatchSize is how many items are condensed into one summary.
	DefaultBatchSize = 8
	// levelOneTargetWords bounds summaries built directly over chunks.
	levelOneTargetWords = 500
	// higherLevelTargetWords bounds summaries of summaries.
	higherLevelTargetWords = 300

	overviewScrollLimit = 1000
)

// ErrNoSummaries is returned when a document has no stored summary tree.
var ErrNoSummaries = errors.New("no summaries for document")

// Result reports the outcome of building a summary tree. Failures are
// absorbed here, matching the indexing boundary.
type Result struct {
	Success        bool
	TotalSummaries int
	Error          string
}

// SummaryMatch is one scored summary node from a summary search.
type SummaryMatch struct {
	NodeID  string
	Content string
	Score   float32
	Level   int
	Payload vectorstore.Payload
}

// Summarizer builds and queries per-document hierarchical summary trees:
// a bottom-up reduction where level 1 condenses the original chunks and
// each further level condenses the one below, until a single root remains.
type Summarizer struct {
	provider   llm.SummaryProvider
	embedder   llm.Embedder
	store      vectorstore.VectorStore
	collection string
	batchSize  int
	logger     *slog.Logger
}

// New creates a summarizer. A non-positive batchSize falls back to
// DefaultBatchSize.
func New(provider llm.SummaryProvider, embedder llm.Embedder, store vectorstore.VectorStore, collection string, batchSize int) *Summarizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Summarizer{
		provider:   provider,
		embedder:   embedder,
		store:      store,
		collection: collection,
		batchSize:  batchSize,
		logger:     slog.Default(),
	}
}

func (s *Summarizer) getLogger(ctx context.Context) *slog.Logger {
	if logger := contextutil.LoggerFromContext(ctx); logger != slog.Default() {
		return logger
	}
	return s.logger
}

// summaryNode is one item of the level currently being reduced.
type summaryNode struct {
	id      string
	content string
}

// CreateRecursiveSummaries builds the summary tree for a document from its
// chunks. Any existing tree for the document is replaced. Terminates once a
// level yields exactly one node, or immediately if the input already has at
// most one item.
func (s *Summarizer) CreateRecursiveSummaries(ctx context.Context, documentID string, chunks []indexer.Chunk) Result {
	logger := s.getLogger(ctx)

	if err := s.store.DeleteByDocument(ctx, s.collection, documentID); err != nil {
		logger.ErrorContext(ctx, "failed to delete existing summaries", "document_id", documentID, "error", err)
		return failed(fmt.Errorf("failed to delete existing summaries: %w", err))
	}

	items := make([]summaryNode, len(chunks))
	for i, chunk := range chunks {
		items[i] = summaryNode{
			id:      fmt.Sprintf("chunk-%d", chunk.Index),
			content: chunk.Content,
		}
	}

	if len(items) <= 1 {
		return Result{Success: true, TotalSummaries: 0}
	}

	total := 0
	level := 1
	for len(items) > 1 {
		next, err := s.reduceLevel(ctx, documentID, items, level)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build summary level", "document_id", documentID, "level", level, "error", err)
			return failed(err)
		}

		total += len(next)
		items = next
		level++
	}

	logger.InfoContext(ctx, "built summary tree", "document_id", documentID, "levels", level-1, "summaries", total)
	return Result{Success: true, TotalSummaries: total}
}

// reduceLevel condenses consecutive groups of batchSize items into summary
// nodes, embeds them, and stores them tagged with the level.
func (s *Summarizer) reduceLevel(ctx context.Context, documentID string, items []summaryNode, level int) ([]summaryNode, error) {
	targetWords := levelOneTargetWords
	if level > 1 {
		targetWords = higherLevelTargetWords
	}

	var (
		next    []summaryNode
		parents [][]string
	)
	for start := 0; start < len(items); start += s.batchSize {
		end := start + s.batchSize
		if end > len(items) {
			end = len(items)
		}
		group := items[start:end]

		contents := make([]string, len(group))
		ids := make([]string, len(group))
		for i, item := range group {
			contents[i] = item.content
			ids[i] = item.id
		}

		summary, err := s.provider.Summarize(ctx, strings.Join(contents, "\n\n"), targetWords)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize group at level %d: %w", level, err)
		}

		next = append(next, summaryNode{id: uuid.New().String(), content: summary})
		parents = append(parents, ids)
	}

	texts := make([]string, len(next))
	for i, node := range next {
		texts[i] = node.content
	}
	embeddings, err := s.embedder.GenerateEmbeddingBatch(ctx, texts, llm.TaskRetrievalDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to embed summaries at level %d: %w", level, err)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]vectorstore.Point, len(next))
	for i, node := range next {
		points[i] = vectorstore.Point{
			ID:  node.id,
			Vec: embeddings[i],
			Payload: vectorstore.Payload{
				DocumentID:     documentID,
				Content:        node.content,
				CreatedAt:      createdAt,
				Level:          level,
				ParentChunkIDs: parents[i],
			},
		}
	}

	if err := s.store.Upsert(ctx, s.collection, points); err != nil {
		return nil, fmt.Errorf("failed to upsert summaries at level %d: %w", level, err)
	}

	return next, nil
}

// GetDocumentOverview returns the content of the document's maximum-level
// summary node, the root overview.
func (s *Summarizer) GetDocumentOverview(ctx context.Context, documentID string) (string, error) {
	results, err := s.store.Scroll(ctx, s.collection, vectorstore.Filter{DocumentID: documentID}, overviewScrollLimit)
	if err != nil {
		return "", fmt.Errorf("failed to read summaries: %w", err)
	}
	if len(results) == 0 {
		return "", ErrNoSummaries
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Payload.Level > best.Payload.Level {
			best = r
		}
	}
	return best.Payload.Content, nil
}

// SearchSummaries performs a vector search over a document's summary tree,
// optionally restricted to one level (0 searches all levels).
func (s *Summarizer) SearchSummaries(ctx context.Context, query, documentID string, level, limit int) ([]SummaryMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, query, llm.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Search(ctx, s.collection, vec, vectorstore.Filter{
		DocumentID: documentID,
		Level:      level,
	}, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search summaries: %w", err)
	}

	matches := make([]SummaryMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, SummaryMatch{
			NodeID:  r.PointID,
			Content: r.Payload.Content,
			Score:   r.Score,
			Level:   r.Payload.Level,
			Payload: r.Payload,
		})
	}
	return matches, nil
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
