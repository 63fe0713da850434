package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"draftmind/internal/llm"
	"draftmind/internal/vectorstore"
)

var validSourceTypes = map[string]struct{}{
	"web":      {},
	"api":      {},
	"database": {},
}

var validRelevances = map[string]struct{}{
	"background_research": {},
	"direct_reference":    {},
	"citation":            {},
}

// IndexResearchSource indexes externally gathered material scoped to a
// document. Like IndexDocument, failures are absorbed into the result.
// Re-indexing a source replaces its previous points entirely.
func (p *Pipeline) IndexResearchSource(ctx context.Context, src ResearchSource) IndexResult {
	logger := p.getLogger(ctx)

	if src.DocumentID == "" || src.SourceID == "" {
		return failedIndex(fmt.Errorf("document id and source id are required"))
	}
	if _, ok := validSourceTypes[src.SourceType]; !ok {
		return failedIndex(fmt.Errorf("invalid source type %q", src.SourceType))
	}
	if _, ok := validRelevances[src.Relevance]; !ok {
		return failedIndex(fmt.Errorf("invalid relevance %q", src.Relevance))
	}

	if err := p.store.Delete(ctx, p.researchCollection, vectorstore.Filter{
		DocumentID: src.DocumentID,
		SourceID:   src.SourceID,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to delete existing research points", "document_id", src.DocumentID, "source_id", src.SourceID, "error", err)
		return failedIndex(fmt.Errorf("failed to delete existing points: %w", err))
	}

	chunks := p.chunker.ChunkMarkdown(src.Content)
	if len(chunks) == 0 {
		return IndexResult{Success: true, ChunksIndexed: 0}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.GenerateEmbeddingBatch(ctx, texts, llm.TaskRetrievalDocument)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed research chunks", "document_id", src.DocumentID, "source_id", src.SourceID, "error", err)
		return failedIndex(fmt.Errorf("failed to embed chunks: %w", err))
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID:  uuid.New().String(),
			Vec: embeddings[i],
			Payload: vectorstore.Payload{
				DocumentID:   src.DocumentID,
				Content:      chunk.Content,
				CreatedAt:    createdAt,
				Chapter:      chunk.Chapter,
				Section:      chunk.Section,
				HeadingLevel: chunk.HeadingLevel,
				HeadingText:  chunk.HeadingText,
				ChunkIndex:   chunk.Index,
				TotalChunks:  chunk.TotalChunks,
				ContentType:  chunk.ContentType,
				CharCount:    chunk.CharCount,
				SourceID:     src.SourceID,
				SourceType:   src.SourceType,
				Relevance:    src.Relevance,
			},
		}
	}

	if err := p.store.Upsert(ctx, p.researchCollection, points); err != nil {
		logger.ErrorContext(ctx, "failed to upsert research points", "document_id", src.DocumentID, "source_id", src.SourceID, "error", err)
		return failedIndex(fmt.Errorf("failed to upsert points: %w", err))
	}

	logger.InfoContext(ctx, "indexed research source", "document_id", src.DocumentID, "source_id", src.SourceID, "chunks", len(chunks))
	return IndexResult{Success: true, ChunksIndexed: len(chunks)}
}

// DeleteResearchSource removes all points for one research source.
func (p *Pipeline) DeleteResearchSource(ctx context.Context, documentID, sourceID string) error {
	if documentID == "" || sourceID == "" {
		return fmt.Errorf("document id and source id are required")
	}
	return p.store.Delete(ctx, p.researchCollection, vectorstore.Filter{
		DocumentID: documentID,
		SourceID:   sourceID,
	})
}
