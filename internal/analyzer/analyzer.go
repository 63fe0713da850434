package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"draftmind/internal/contextutil"
	"draftmind/internal/llm"
	"draftmind/internal/vectorstore"
)

const (
	// DefaultDuplicateThreshold is the similarity at or above which existing
	// content counts as a duplicate of the candidate text.
	DefaultDuplicateThreshold = float32(0.85)

	duplicateCandidateLimit = 5
	structureScrollLimit    = 10000
)

// DuplicateMatch is one existing chunk similar to the candidate content,
// with enough location context to find it in the document.
type DuplicateMatch struct {
	Content     string
	Score       float32
	Chapter     string
	Section     string
	HeadingText string
}

// DuplicateReport is the outcome of a duplicate content check.
type DuplicateReport struct {
	IsDuplicate bool
	Threshold   float32
	Matches     []DuplicateMatch
}

// SectionStats aggregates the indexed chunks of one (chapter, section) group.
type SectionStats struct {
	Chapter    string
	Section    string
	ChunkCount int
	CharCount  int
}

// StructureReport describes a document's indexed shape.
type StructureReport struct {
	DocumentID  string
	TotalChunks int
	Sections    []SectionStats
}

// Analyzer answers questions about a document's indexed content: whether
// new text duplicates what is already there, and how the document is laid
// out section by section.
type Analyzer struct {
	embedder         llm.Embedder
	store            vectorstore.VectorStore
	chunksCollection string
	logger           *slog.Logger
}

// New creates an analyzer over the document chunks collection.
func New(embedder llm.Embedder, store vectorstore.VectorStore, chunksCollection string) *Analyzer {
	return &Analyzer{
		embedder:         embedder,
		store:            store,
		chunksCollection: chunksCollection,
		logger:           slog.Default(),
	}
}

func (a *Analyzer) getLogger(ctx context.Context) *slog.Logger {
	if logger := contextutil.LoggerFromContext(ctx); logger != slog.Default() {
		return logger
	}
	return a.logger
}

// CheckDuplicateContent compares candidate content against a document's
// indexed chunks. A non-positive threshold uses DefaultDuplicateThreshold.
// The report lists the closest existing chunks whether or not any of them
// crosses the threshold.
func (a *Analyzer) CheckDuplicateContent(ctx context.Context, documentID, content string, threshold float32) (*DuplicateReport, error) {
	logger := a.getLogger(ctx)

	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	vec, err := a.embedder.GenerateEmbedding(ctx, content, llm.TaskSemanticSimilarity)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}

	results, err := a.store.Search(ctx, a.chunksCollection, vec,
		vectorstore.Filter{DocumentID: documentID}, duplicateCandidateLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search for similar chunks: %w", err)
	}

	report := &DuplicateReport{Threshold: threshold}
	for _, r := range results {
		if r.Score >= threshold {
			report.IsDuplicate = true
		}
		report.Matches = append(report.Matches, DuplicateMatch{
			Content:     r.Payload.Content,
			Score:       r.Score,
			Chapter:     r.Payload.Chapter,
			Section:     r.Payload.Section,
			HeadingText: r.Payload.HeadingText,
		})
	}

	logger.DebugContext(ctx, "duplicate check completed",
		"document_id", documentID, "candidates", len(results), "duplicate", report.IsDuplicate)
	return report, nil
}

// GetDocumentStructure groups a document's indexed chunks by chapter and
// section, ordered by chapter then section.
func (a *Analyzer) GetDocumentStructure(ctx context.Context, documentID string) (*StructureReport, error) {
	results, err := a.store.Scroll(ctx, a.chunksCollection,
		vectorstore.Filter{DocumentID: documentID}, structureScrollLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read document chunks: %w", err)
	}

	type key struct {
		chapter string
		section string
	}
	groups := make(map[key]*SectionStats)
	for _, r := range results {
		k := key{chapter: r.Payload.Chapter, section: r.Payload.Section}
		stats, ok := groups[k]
		if !ok {
			stats = &SectionStats{Chapter: k.chapter, Section: k.section}
			groups[k] = stats
		}
		stats.ChunkCount++
		stats.CharCount += r.Payload.CharCount
	}

	report := &StructureReport{
		DocumentID:  documentID,
		TotalChunks: len(results),
		Sections:    make([]SectionStats, 0, len(groups)),
	}
	for _, stats := range groups {
		report.Sections = append(report.Sections, *stats)
	}
	sort.Slice(report.Sections, func(i, j int) bool {
		if report.Sections[i].Chapter != report.Sections[j].Chapter {
			return report.Sections[i].Chapter < report.Sections[j].Chapter
		}
		return report.Sections[i].Section < report.Sections[j].Section
	})

	return report, nil
}
