package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"draftmind/internal/contextutil"
	"draftmind/internal/llm"
	"draftmind/internal/vectorstore"
)

// Pipeline orchestrates chunk → embed → store for documents and research
// sources. Re-indexing is full delete + full reinsert; there is no
// incremental per-chunk update, so no stale chunk survives a structural
// edit that shifts headings.
type Pipeline struct {
	embedder           llm.Embedder
	store              vectorstore.VectorStore
	chunker            *Chunker
	chunksCollection   string
	researchCollection string
	logger             *slog.Logger
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	embedder llm.Embedder,
	store vectorstore.VectorStore,
	chunksCollection string,
	researchCollection string,
	maxChunkSize int,
) *Pipeline {
	return &Pipeline{
		embedder:           embedder,
		store:              store,
		chunker:            NewChunker(maxChunkSize),
		chunksCollection:   chunksCollection,
		researchCollection: researchCollection,
		logger:             slog.Default(),
	}
}

func (p *Pipeline) getLogger(ctx context.Context) *slog.Logger {
	if logger := contextutil.LoggerFromContext(ctx); logger != slog.Default() {
		return logger
	}
	return p.logger
}

// IndexDocument indexes one document version: deletes any existing points
// for the document, chunks the content, embeds every chunk, and upserts one
// point per chunk. Failures are absorbed into the result; this method never
// propagates an error past its boundary.
func (p *Pipeline) IndexDocument(ctx context.Context, documentID, title, content string, version int) IndexResult {
	logger := p.getLogger(ctx)

	// Idempotent safety net: clear any points from a previous version first.
	if err := p.store.DeleteByDocument(ctx, p.chunksCollection, documentID); err != nil {
		logger.ErrorContext(ctx, "failed to delete existing document points", "document_id", documentID, "error", err)
		return failedIndex(fmt.Errorf("failed to delete existing points: %w", err))
	}

	chunks := p.chunker.ChunkMarkdown(content)
	if len(chunks) == 0 {
		logger.InfoContext(ctx, "document produced no chunks", "document_id", documentID)
		return IndexResult{Success: true, ChunksIndexed: 0}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.GenerateEmbeddingBatch(ctx, texts, llm.TaskRetrievalDocument)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed document chunks", "document_id", documentID, "chunks", len(chunks), "error", err)
		return failedIndex(fmt.Errorf("failed to embed chunks: %w", err))
	}
	if len(embeddings) != len(chunks) {
		return failedIndex(fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings)))
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID:  uuid.New().String(),
			Vec: embeddings[i],
			Payload: vectorstore.Payload{
				DocumentID:   documentID,
				Version:      version,
				Title:        title,
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
			},
		}
	}

	if err := p.store.Upsert(ctx, p.chunksCollection, points); err != nil {
		logger.ErrorContext(ctx, "failed to upsert document points", "document_id", documentID, "chunks", len(chunks), "error", err)
		return failedIndex(fmt.Errorf("failed to upsert points: %w", err))
	}

	logger.InfoContext(ctx, "indexed document", "document_id", documentID, "version", version, "chunks", len(chunks))
	return IndexResult{Success: true, ChunksIndexed: len(chunks)}
}

// Chunk exposes the pipeline's chunker, so callers (the summarizer feed)
// chunk with the same configuration the index was built with.
func (p *Pipeline) Chunk(content string) []Chunk {
	return p.chunker.ChunkMarkdown(content)
}

func failedIndex(err error) IndexResult {
	return IndexResult{Success: false, Error: err.Error()}
}
