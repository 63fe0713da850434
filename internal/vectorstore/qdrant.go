package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"draftmind/internal/contextutil"
)

// QdrantStore implements VectorStore using Qdrant.
type QdrantStore struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port is derived from the HTTP port (HTTP port + 1).
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client: client,
		logger: slog.Default(),
	}, nil
}

func (s *QdrantStore) getLogger(ctx context.Context) *slog.Logger {
	if logger := contextutil.LoggerFromContext(ctx); logger != slog.Default() {
		return logger
	}
	return s.logger
}

// HealthCheck verifies the store is reachable by listing collections.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// storeErr wraps a failed client call. Transport-level unavailability is
// tagged with ErrUnavailable so callers can tell a down store apart from a
// bad request.
func storeErr(op string, err error) error {
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// EnsureCollection creates the collection if it does not exist and
// validates the vector size if it does. Creation is idempotent.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := s.getLogger(ctx)

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return storeErr("failed to check collection existence", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return storeErr("failed to create collection", err)
		}
		logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return storeErr("failed to get collection info", err)
	}

	config := info.Config
	if config == nil || config.Params == nil {
		return fmt.Errorf("collection config is invalid")
	}
	vectorsConfig := config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return fmt.Errorf("collection vectors config is invalid")
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return fmt.Errorf("collection vector params are invalid")
	}

	if int(params.Size) != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, params.Size)
	}

	return nil
}

// Upsert inserts or updates points, waiting for durability before returning.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := s.getLogger(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: qdrant.NewValueMap(payloadToMap(point.Payload)),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
		Wait:           &wait,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return storeErr("failed to upsert points", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Delete removes all points matching the filter.
func (s *QdrantStore) Delete(ctx context.Context, collection string, filter Filter) error {
	logger := s.getLogger(ctx)

	if filter.IsZero() {
		return fmt.Errorf("refusing to delete with an empty filter")
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(buildFilter(filter)),
		Wait:           &wait,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "error", err)
		return storeErr("failed to delete points", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection)
	return nil
}

// DeleteByDocument removes all points belonging to a document.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	return s.Delete(ctx, collection, Filter{DocumentID: documentID})
}

// Search performs a similarity search, returning results above the score
// threshold in descending similarity order.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, filter Filter, limit int, scoreThreshold float32) ([]SearchResult, error) {
	logger := s.getLogger(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	limitU := uint64(limit)
	queryReq := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limitU,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if !filter.IsZero() {
		queryReq.Filter = buildFilter(filter)
	}
	if scoreThreshold > 0 {
		threshold := scoreThreshold
		queryReq.ScoreThreshold = &threshold
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "limit", limit, "error", err)
		return nil, storeErr("failed to search points", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		pointID := ""
		if point.Id != nil {
			pointID = point.Id.GetUuid()
		}
		results = append(results, SearchResult{
			PointID: pointID,
			Score:   point.Score,
			Payload: payloadFromQdrant(point.Payload),
		})
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "limit", limit, "results", len(results))
	return results, nil
}

// Scroll reads up to limit points matching the filter without scoring.
func (s *QdrantStore) Scroll(ctx context.Context, collection string, filter Filter, limit int) ([]SearchResult, error) {
	logger := s.getLogger(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	limitU := uint32(limit)
	scrollReq := &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limitU,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if !filter.IsZero() {
		scrollReq.Filter = buildFilter(filter)
	}

	points, err := s.client.Scroll(ctx, scrollReq)
	if err != nil {
		logger.ErrorContext(ctx, "failed to scroll points", "collection", collection, "limit", limit, "error", err)
		return nil, storeErr("failed to scroll points", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		pointID := ""
		if point.Id != nil {
			pointID = point.Id.GetUuid()
		}
		results = append(results, SearchResult{
			PointID: pointID,
			Payload: payloadFromQdrant(point.Payload),
		})
	}

	logger.DebugContext(ctx, "scroll completed", "collection", collection, "results", len(results))
	return results, nil
}

// buildFilter converts a Filter into Qdrant must-conditions.
func buildFilter(filter Filter) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, 4)

	if filter.DocumentID != "" {
		conditions = append(conditions, qdrant.NewMatch("document_id", filter.DocumentID))
	}
	if len(filter.DocumentIDs) > 0 {
		conditions = append(conditions, qdrant.NewMatchKeywords("document_id", filter.DocumentIDs...))
	}
	if filter.UserID != "" {
		conditions = append(conditions, qdrant.NewMatch("user_id", filter.UserID))
	}
	if filter.SourceID != "" {
		conditions = append(conditions, qdrant.NewMatch("source_id", filter.SourceID))
	}
	if filter.SourceType != "" {
		conditions = append(conditions, qdrant.NewMatch("source_type", filter.SourceType))
	}
	if filter.Chapter != "" {
		conditions = append(conditions, qdrant.NewMatch("chapter", filter.Chapter))
	}
	if filter.Section != "" {
		conditions = append(conditions, qdrant.NewMatch("section", filter.Section))
	}
	if filter.ContentType != "" {
		conditions = append(conditions, qdrant.NewMatch("content_type", filter.ContentType))
	}
	if filter.Level > 0 {
		conditions = append(conditions, qdrant.NewMatchInt("level", int64(filter.Level)))
	}

	return &qdrant.Filter{Must: conditions}
}

// payloadToMap flattens a typed payload into the map shape Qdrant stores.
// Only fields that apply to the point kind are written.
func payloadToMap(p Payload) map[string]any {
	m := make(map[string]any, 16)

	setString := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}

	setString("document_id", p.DocumentID)
	setString("title", p.Title)
	setString("content", p.Content)
	setString("created_at", p.CreatedAt)
	setString("chapter", p.Chapter)
	setString("section", p.Section)
	setString("heading_text", p.HeadingText)
	setString("content_type", p.ContentType)
	setString("source_id", p.SourceID)
	setString("source_type", p.SourceType)
	setString("relevance", p.Relevance)
	setString("user_id", p.UserID)

	if p.Version > 0 {
		m["version"] = p.Version
	}
	// TotalChunks >= 1 marks a chunk-shaped payload; its positional fields
	// are meaningful even when zero.
	if p.TotalChunks > 0 {
		m["heading_level"] = p.HeadingLevel
		m["chunk_index"] = p.ChunkIndex
		m["total_chunks"] = p.TotalChunks
		m["char_count"] = p.CharCount
	}
	if p.Level > 0 {
		m["level"] = p.Level
	}
	if len(p.ParentChunkIDs) > 0 {
		ids := make([]any, len(p.ParentChunkIDs))
		for i, id := range p.ParentChunkIDs {
			ids[i] = id
		}
		m["parent_chunk_ids"] = ids
	}

	return m
}

// payloadFromQdrant maps a Qdrant payload back into the typed struct.
func payloadFromQdrant(payload map[string]*qdrant.Value) Payload {
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		m[k] = convertValue(v)
	}

	p := Payload{
		DocumentID:   getString(m, "document_id"),
		Title:        getString(m, "title"),
		Content:      getString(m, "content"),
		CreatedAt:    getString(m, "created_at"),
		Chapter:      getString(m, "chapter"),
		Section:      getString(m, "section"),
		HeadingText:  getString(m, "heading_text"),
		ContentType:  getString(m, "content_type"),
		SourceID:     getString(m, "source_id"),
		SourceType:   getString(m, "source_type"),
		Relevance:    getString(m, "relevance"),
		UserID:       getString(m, "user_id"),
		Version:      getInt(m, "version"),
		HeadingLevel: getInt(m, "heading_level"),
		ChunkIndex:   getInt(m, "chunk_index"),
		TotalChunks:  getInt(m, "total_chunks"),
		CharCount:    getInt(m, "char_count"),
		Level:        getInt(m, "level"),
	}

	if raw, ok := m["parent_chunk_ids"].([]any); ok {
		ids := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		p.ParentChunkIDs = ids
	}

	return p
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// convertValue converts a Qdrant Value to a plain Go value.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	default:
		return nil
	}
}
