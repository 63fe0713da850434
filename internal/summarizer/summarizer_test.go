package summarizer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/mock/gomock"

	"draftmind/internal/indexer"
	"draftmind/internal/llm"
	llm_mocks "draftmind/internal/llm/mocks"
	"draftmind/internal/vectorstore"
	vectorstore_mocks "draftmind/internal/vectorstore/mocks"
)

func makeChunks(n int) []indexer.Chunk {
	chunks := make([]indexer.Chunk, n)
	for i := range chunks {
		chunks[i] = indexer.Chunk{
			Content:     fmt.Sprintf("chunk content %d", i),
			Index:       i,
			TotalChunks: n,
		}
	}
	return chunks
}

func batchVectors(texts []string, _ string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{float32(i)}
	}
	return vecs, nil
}

func TestSummarizer_CreateRecursiveSummaries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProvider := llm_mocks.NewMockSummaryProvider(ctrl)
	mockEmbedder := llm_mocks.NewMockEmbedder(ctrl)
	mockStore := vectorstore_mocks.NewMockVectorStore(ctrl)

	s := New(mockProvider, mockEmbedder, mockStore, "summaries", 8)
	ctx := context.Background()

	mockStore.EXPECT().DeleteByDocument(ctx, "summaries", "doc-1").Return(nil)

	// 20 chunks, batches of 8: level 1 yields 3 summaries at 500 words,
	// level 2 collapses those into 1 at 300 words.
	mockProvider.EXPECT().
		Summarize(ctx, gomock.Any(), 500).
		Return("level one summary", nil).
		Times(3)
	mockProvider.EXPECT().
		Summarize(ctx, gomock.Any(), 300).
		Return("root summary", nil)

	mockEmbedder.EXPECT().
		GenerateEmbeddingBatch(ctx, gomock.Len(3), llm.TaskRetrievalDocument).
		DoAndReturn(func(_ context.Context, texts []string, taskType string) ([][]float32, error) {
			return batchVectors(texts, taskType)
		})
	mockEmbedder.EXPECT().
		GenerateEmbeddingBatch(ctx, gomock.Len(1), llm.TaskRetrievalDocument).
		DoAndReturn(func(_ context.Context, texts []string, taskType string) ([][]float32, error) {
			return batchVectors(texts, taskType)
		})

	var levels [][]vectorstore.Point
	mockStore.EXPECT().
		Upsert(ctx, "summaries", gomock.Any()).
		Do(func(_ context.Context, _ string, points []vectorstore.Point) {
			levels = append(levels, points)
		}).
		Return(nil).
		Times(2)

	result := s.CreateRecursiveSummaries(ctx, "doc-1", makeChunks(20))

	if !result.Success {
		t.Fatalf("CreateRecursiveSummaries() failed: %s", result.Error)
	}
	if result.TotalSummaries != 4 {
		t.Errorf("TotalSummaries = %d, want 4", result.TotalSummaries)
	}
	if len(levels) != 2 {
		t.Fatalf("stored %d levels, want 2", len(levels))
	}

	levelOne := levels[0]
	if len(levelOne) != 3 {
		t.Fatalf("level 1 has %d nodes, want 3", len(levelOne))
	}
	first := levelOne[0].Payload
	if first.Level != 1 || first.DocumentID != "doc-1" {
		t.Errorf("level 1 payload = level %d doc %q", first.Level, first.DocumentID)
	}
	if len(first.ParentChunkIDs) != 8 || first.ParentChunkIDs[0] != "chunk-0" {
		t.Errorf("level 1 ParentChunkIDs = %v", first.ParentChunkIDs)
	}
	if last := levelOne[2].Payload; len(last.ParentChunkIDs) != 4 {
		t.Errorf("trailing group has %d parents, want 4", len(last.ParentChunkIDs))
	}

	root := levels[1]
	if len(root) != 1 {
		t.Fatalf("level 2 has %d nodes, want 1", len(root))
	}
	if root[0].Payload.Level != 2 || len(root[0].Payload.ParentChunkIDs) != 3 {
		t.Errorf("root payload = level %d with %d parents", root[0].Payload.Level, len(root[0].Payload.ParentChunkIDs))
	}
	// Root parents are the level-1 point ids.
	if root[0].Payload.ParentChunkIDs[0] != levelOne[0].ID {
		t.Error("root does not reference level 1 node ids")
	}
}

func TestSummarizer_CreateRecursiveSummaries_SingleChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := vectorstore_mocks.NewMockVectorStore(ctrl)
	s := New(llm_mocks.NewMockSummaryProvider(ctrl), llm_mocks.NewMockEmbedder(ctrl), mockStore, "summaries", 8)

	mockStore.EXPECT().DeleteByDocument(gomock.Any(), "summaries", "doc-1").Return(nil)

	result := s.CreateRecursiveSummaries(context.Background(), "doc-1", makeChunks(1))

	if !result.Success {
		t.Fatalf("CreateRecursiveSummaries() failed: %s", result.Error)
	}
	if result.TotalSummaries != 0 {
		t.Errorf("TotalSummaries = %d, want 0", result.TotalSummaries)
	}
}

func TestSummarizer_CreateRecursiveSummaries_ProviderFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockProvider := llm_mocks.NewMockSummaryProvider(ctrl)
	mockStore := vectorstore_mocks.NewMockVectorStore(ctrl)
	s := New(mockProvider, llm_mocks.NewMockEmbedder(ctrl), mockStore, "summaries", 8)

	mockStore.EXPECT().DeleteByDocument(gomock.Any(), "summaries", "doc-1").Return(nil)
	mockProvider.EXPECT().
		Summarize(gomock.Any(), gomock.Any(), 500).
		Return("", errors.New("model offline"))

	result := s.CreateRecursiveSummaries(context.Background(), "doc-1", makeChunks(10))

	if result.Success {
		t.Fatal("CreateRecursiveSummaries() succeeded despite provider failure")
	}
	if result.Error == "" {
		t.Error("Error should describe the failure")
	}
}

func TestSummarizer_GetDocumentOverview(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := vectorstore_mocks.NewMockVectorStore(ctrl)
	s := New(llm_mocks.NewMockSummaryProvider(ctrl), llm_mocks.NewMockEmbedder(ctrl), mockStore, "summaries", 8)

	mockStore.EXPECT().
		Scroll(gomock.Any(), "summaries", vectorstore.Filter{DocumentID: "doc-1"}, overviewScrollLimit).
		Return([]vectorstore.SearchResult{
			{Payload: vectorstore.Payload{Level: 1, Content: "detail"}},
			{Payload: vectorstore.Payload{Level: 2, Content: "the overview"}},
			{Payload: vectorstore.Payload{Level: 1, Content: "more detail"}},
		}, nil)

	overview, err := s.GetDocumentOverview(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetDocumentOverview() error = %v", err)
	}
	if overview != "the overview" {
		t.Errorf("GetDocumentOverview() = %q, want the highest level", overview)
	}
}

func TestSummarizer_GetDocumentOverview_NoSummaries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := vectorstore_mocks.NewMockVectorStore(ctrl)
	s := New(llm_mocks.NewMockSummaryProvider(ctrl), llm_mocks.NewMockEmbedder(ctrl), mockStore, "summaries", 8)

	mockStore.EXPECT().
		Scroll(gomock.Any(), "summaries", gomock.Any(), gomock.Any()).
		Return(nil, nil)

	if _, err := s.GetDocumentOverview(context.Background(), "doc-1"); !errors.Is(err, ErrNoSummaries) {
		t.Errorf("GetDocumentOverview() error = %v, want ErrNoSummaries", err)
	}
}

func TestSummarizer_SearchSummaries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEmbedder := llm_mocks.NewMockEmbedder(ctrl)
	mockStore := vectorstore_mocks.NewMockVectorStore(ctrl)
	s := New(llm_mocks.NewMockSummaryProvider(ctrl), mockEmbedder, mockStore, "summaries", 8)

	vec := []float32{0.5}
	mockEmbedder.EXPECT().
		GenerateEmbedding(gomock.Any(), "topic", llm.TaskRetrievalQuery).
		Return(vec, nil)
	mockStore.EXPECT().
		Search(gomock.Any(), "summaries", vec,
			vectorstore.Filter{DocumentID: "doc-1", Level: 2}, 10, float32(0)).
		Return([]vectorstore.SearchResult{
			{PointID: "p1", Score: 0.88, Payload: vectorstore.Payload{Level: 2, Content: "summary"}},
		}, nil)

	matches, err := s.SearchSummaries(context.Background(), "topic", "doc-1", 2, 0)
	if err != nil {
		t.Fatalf("SearchSummaries() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].NodeID != "p1" || matches[0].Level != 2 {
		t.Errorf("match = %+v", matches[0])
	}
}
