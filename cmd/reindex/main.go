package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"draftmind/internal/analyzer"
	"draftmind/internal/config"
	"draftmind/internal/contextutil"
	"draftmind/internal/indexer"
	"draftmind/internal/llm"
	"draftmind/internal/storage"
	"draftmind/internal/summarizer"
	"draftmind/internal/vectorstore"
)

// reindex walks a directory of markdown files, records each one as a
// document, and rebuilds its chunk index and summary tree. With the vector
// store unreachable it degrades to import-only mode: documents still land
// in sqlite, vector work is skipped.
func main() {
	dir := flag.String("dir", ".", "directory of markdown documents to index")
	owner := flag.String("owner", "local", "owner id recorded on imported documents")
	summaries := flag.Bool("summaries", true, "build recursive summary trees after indexing")
	structure := flag.Bool("structure", false, "print a structure report per document after indexing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	docRepo := storage.NewDocumentRepo(db)

	ctx := contextutil.WithLogger(context.Background(), logger)

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	vectorsReady := true
	if err := vectorStore.HealthCheck(ctx); err != nil {
		slog.Warn("Vector store unreachable, vector features disabled", "url", cfg.QdrantURL, "error", err)
		vectorsReady = false
	}

	if vectorsReady {
		for _, collection := range []string{
			cfg.ChunksCollection,
			cfg.SummariesCollection,
			cfg.ResearchCollection,
			cfg.UploadsCollection,
		} {
			if err := vectorStore.EnsureCollection(ctx, collection, cfg.VectorSize); err != nil {
				log.Fatalf("Failed to ensure collection %s: %v", collection, err)
			}
		}
		slog.Info("Qdrant collections ready", "vector_size", cfg.VectorSize)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.VectorSize, cfg.EmbeddingCacheSize)
	embedder.Timeout = cfg.EmbeddingTimeout
	embedder.Disabled = !cfg.EmbeddingsEnabled

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	pipeline := indexer.NewPipeline(embedder, vectorStore, cfg.ChunksCollection, cfg.ResearchCollection, cfg.MaxChunkSize)
	summaryBuilder := summarizer.New(llmClient, embedder, vectorStore, cfg.SummariesCollection, cfg.SummaryBatchSize)
	structureAnalyzer := analyzer.New(embedder, vectorStore, cfg.ChunksCollection)

	paths, err := markdownFiles(*dir)
	if err != nil {
		log.Fatalf("Failed to scan %s: %v", *dir, err)
	}
	if len(paths) == 0 {
		slog.Warn("No markdown files found", "dir", *dir)
		return
	}
	slog.Info("Starting reindex", "dir", *dir, "files", len(paths), "vectors", vectorsReady)

	indexed := 0
	failed := 0
	for _, path := range paths {
		if err := processFile(ctx, path, *owner, *summaries, vectorsReady, docRepo, pipeline, summaryBuilder); err != nil {
			slog.Error("Failed to process file", "path", path, "error", err)
			failed++
			continue
		}
		indexed++
	}

	if *structure && vectorsReady {
		printStructureReports(ctx, *owner, docRepo, structureAnalyzer)
	}

	slog.Info("Reindex completed", "indexed", indexed, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// processFile imports one markdown file and, when the vector store is up,
// rebuilds its chunk index and summary tree.
func processFile(
	ctx context.Context,
	path, owner string,
	buildSummaries, vectorsReady bool,
	docRepo *storage.DocumentRepo,
	pipeline *indexer.Pipeline,
	summaryBuilder *summarizer.Summarizer,
) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	record := &storage.DocumentRecord{
		ID:      documentID(owner, path),
		OwnerID: owner,
		Title:   title,
		Content: string(content),
	}
	if err := docRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if !vectorsReady {
		slog.Info("Imported document without vectors", "document_id", record.ID, "title", title)
		return nil
	}

	result := pipeline.IndexDocument(ctx, record.ID, record.Title, record.Content, record.Version)
	if !result.Success {
		return fmt.Errorf("indexing failed: %s", result.Error)
	}
	slog.Info("Indexed document", "document_id", record.ID, "title", title, "chunks", result.ChunksIndexed)

	if buildSummaries {
		summaryResult := summaryBuilder.CreateRecursiveSummaries(ctx, record.ID, pipeline.Chunk(record.Content))
		if !summaryResult.Success {
			return fmt.Errorf("summarization failed: %s", summaryResult.Error)
		}
		slog.Info("Built summary tree", "document_id", record.ID, "summaries", summaryResult.TotalSummaries)
	}

	return nil
}

func printStructureReports(ctx context.Context, owner string, docRepo *storage.DocumentRepo, structureAnalyzer *analyzer.Analyzer) {
	ids, err := docRepo.ListIDsByOwner(ctx, owner)
	if err != nil {
		slog.Error("Failed to list documents for structure reports", "owner", owner, "error", err)
		return
	}
	for _, id := range ids {
		report, err := structureAnalyzer.GetDocumentStructure(ctx, id)
		if err != nil {
			slog.Error("Failed to build structure report", "document_id", id, "error", err)
			continue
		}
		fmt.Printf("%s: %d chunks\n", report.DocumentID, report.TotalChunks)
		for _, section := range report.Sections {
			fmt.Printf("  %s / %s: %d chunks, %d chars\n", section.Chapter, section.Section, section.ChunkCount, section.CharCount)
		}
	}
}

// markdownFiles lists .md files under dir, sorted by path.
func markdownFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// documentID derives a stable id from owner and file path, so re-running
// against the same tree updates documents instead of duplicating them.
func documentID(owner, path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	return owner + ":" + clean
}
