package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"draftmind/internal/contextutil"
	"draftmind/internal/llm"
	"draftmind/internal/storage"
	"draftmind/internal/vectorstore"
)

const (
	// DefaultLimit is the result budget when the caller does not set one.
	DefaultLimit = 10
	// DefaultScoreThreshold is the base similarity floor.
	DefaultScoreThreshold = 0.7
)

// Per-source blending parameters. Disjoint capped sub-budgets guarantee the
// currently open document is never crowded out by a larger secondary corpus.
const (
	currentDocWeight = float32(1.0)
	currentDocShare  = 0.6

	otherDocsWeight         = float32(0.5)
	otherDocsShare          = 0.3
	otherDocsThresholdScale = float32(0.8)

	uploadsWeight         = float32(0.4)
	uploadsShare          = 0.2
	uploadsThresholdScale = float32(0.7)
)

// Engine performs semantic retrieval over indexed chunks, blending results
// from the current document, the user's other documents, and the user's
// uploaded files under fixed priority weights.
type Engine struct {
	embedder           llm.Embedder
	store              vectorstore.VectorStore
	docs               storage.DocumentStore
	chunksCollection   string
	researchCollection string
	uploadsCollection  string
	logger             *slog.Logger
}

// NewEngine creates a new retrieval engine.
func NewEngine(
	embedder llm.Embedder,
	store vectorstore.VectorStore,
	docs storage.DocumentStore,
	chunksCollection string,
	researchCollection string,
	uploadsCollection string,
) *Engine {
	return &Engine{
		embedder:           embedder,
		store:              store,
		docs:               docs,
		chunksCollection:   chunksCollection,
		researchCollection: researchCollection,
		uploadsCollection:  uploadsCollection,
		logger:             slog.Default(),
	}
}

func (e *Engine) getLogger(ctx context.Context) *slog.Logger {
	if logger := contextutil.LoggerFromContext(ctx); logger != slog.Default() {
		return logger
	}
	return e.logger
}

// SearchDocumentChunks performs a filtered similarity search over indexed
// document chunks.
func (e *Engine) SearchDocumentChunks(ctx context.Context, query string, opts SearchOptions) ([]ChunkMatch, error) {
	limit, threshold := applyDefaults(opts.Limit, opts.ScoreThreshold)

	vec, err := e.embedder.GenerateEmbedding(ctx, query, llm.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Search(ctx, e.chunksCollection, vec, vectorstore.Filter{
		DocumentID:  opts.DocumentID,
		Chapter:     opts.Chapter,
		Section:     opts.Section,
		ContentType: opts.ContentType,
	}, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	return toChunkMatches(results), nil
}

// SearchResearchSources performs a similarity search over a document's
// indexed research material.
func (e *Engine) SearchResearchSources(ctx context.Context, query, documentID string, limit int, scoreThreshold float32) ([]ChunkMatch, error) {
	limit, threshold := applyDefaults(limit, scoreThreshold)

	vec, err := e.embedder.GenerateEmbedding(ctx, query, llm.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := e.store.Search(ctx, e.researchCollection, vec, vectorstore.Filter{
		DocumentID: documentID,
	}, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search research sources: %w", err)
	}

	return toChunkMatches(results), nil
}

// SearchUserContext runs up to three independent searches against disjoint
// filters (the current document, the user's other owned documents, and the
// user's uploaded files), weights each result by its source priority, and
// returns the pooled results sorted by weighted score. A source whose
// backing index is unavailable is skipped rather than failing the query.
// No cross-source deduplication is performed.
func (e *Engine) SearchUserContext(ctx context.Context, query, userID, currentDocumentID string, opts ContextOptions) ([]ContextResult, error) {
	logger := e.getLogger(ctx)
	limit, threshold := applyDefaults(opts.Limit, opts.ScoreThreshold)

	vec, err := e.embedder.GenerateEmbedding(ctx, query, llm.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var pooled []ContextResult

	if currentDocumentID != "" {
		results, err := e.store.Search(ctx, e.chunksCollection, vec,
			vectorstore.Filter{DocumentID: currentDocumentID},
			shareOf(limit, currentDocShare), threshold)
		if err != nil {
			logger.WarnContext(ctx, "current document search unavailable, skipping", "document_id", currentDocumentID, "error", err)
		} else {
			pooled = append(pooled, weighted(results, SourceCurrentDoc, currentDocWeight)...)
		}
	}

	if siblingIDs := e.siblingDocumentIDs(ctx, userID, currentDocumentID); len(siblingIDs) > 0 {
		results, err := e.store.Search(ctx, e.chunksCollection, vec,
			vectorstore.Filter{DocumentIDs: siblingIDs},
			shareOf(limit, otherDocsShare), threshold*otherDocsThresholdScale)
		if err != nil {
			logger.WarnContext(ctx, "sibling document search unavailable, skipping", "user_id", userID, "error", err)
		} else {
			pooled = append(pooled, weighted(results, SourceOtherDocs, otherDocsWeight)...)
		}
	}

	if userID != "" {
		results, err := e.store.Search(ctx, e.uploadsCollection, vec,
			vectorstore.Filter{UserID: userID},
			shareOf(limit, uploadsShare), threshold*uploadsThresholdScale)
		if err != nil {
			logger.WarnContext(ctx, "uploaded file search unavailable, skipping", "user_id", userID, "error", err)
		} else {
			pooled = append(pooled, weighted(results, SourceUploadedFiles, uploadsWeight)...)
		}
	}

	sort.SliceStable(pooled, func(i, j int) bool {
		return pooled[i].WeightedScore > pooled[j].WeightedScore
	})
	if len(pooled) > limit {
		pooled = pooled[:limit]
	}

	logger.DebugContext(ctx, "user context search completed", "user_id", userID, "results", len(pooled))
	return pooled, nil
}

// siblingDocumentIDs resolves the user's other owned documents. A document
// store failure skips the source rather than failing the query.
func (e *Engine) siblingDocumentIDs(ctx context.Context, userID, currentDocumentID string) []string {
	if userID == "" {
		return nil
	}

	ids, err := e.docs.ListIDsByOwner(ctx, userID)
	if err != nil {
		e.getLogger(ctx).WarnContext(ctx, "failed to list owned documents, skipping sibling search", "user_id", userID, "error", err)
		return nil
	}

	siblings := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != currentDocumentID {
			siblings = append(siblings, id)
		}
	}
	return siblings
}

// shareOf caps a source's sub-budget as a fraction of the result budget.
func shareOf(limit int, share float64) int {
	n := int(float64(limit) * share)
	if n < 1 {
		n = 1
	}
	return n
}

func weighted(results []vectorstore.SearchResult, source string, weight float32) []ContextResult {
	out := make([]ContextResult, 0, len(results))
	for _, r := range results {
		out = append(out, ContextResult{
			Content:       r.Payload.Content,
			Score:         r.Score,
			WeightedScore: r.Score * weight,
			Source:        source,
			Payload:       r.Payload,
		})
	}
	return out
}

func toChunkMatches(results []vectorstore.SearchResult) []ChunkMatch {
	matches := make([]ChunkMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, ChunkMatch{
			PointID: r.PointID,
			Content: r.Payload.Content,
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return matches
}

func applyDefaults(limit int, threshold float32) (int, float32) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return limit, threshold
}
