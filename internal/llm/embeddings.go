package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultEmbeddingTimeout bounds a single embedding provider call.
	DefaultEmbeddingTimeout = 30 * time.Second
	// subBatchSize is the maximum number of items sent in one batch pass.
	subBatchSize = 100
)

// EmbeddingsClient generates embedding vectors via an OpenAI-compatible
// embeddings endpoint, with a bounded in-process cache.
type EmbeddingsClient struct {
	BaseURL string
	APIKey  string
	Model   string

	// Timeout bounds each provider call. Zero means DefaultEmbeddingTimeout.
	Timeout time.Duration

	// Disabled short-circuits the provider and returns zero vectors of the
	// configured dimension, preserving pipeline shape when embeddings are
	// turned off by configuration.
	Disabled bool

	dimension int
	cache     *embeddingCache
	client    *http.Client
}

// NewEmbeddingsClient creates a new embeddings client.
// dimension is the expected vector size; every vector returned by the
// provider is validated against it. cacheSize bounds the embedding cache
// (<= 0 disables caching).
func NewEmbeddingsClient(baseURL, apiKey, model string, dimension, cacheSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Model:     model,
		Timeout:   DefaultEmbeddingTimeout,
		dimension: dimension,
		cache:     newEmbeddingCache(cacheSize),
		client:    http.DefaultClient,
	}
}

// Dimension returns the vector size this client produces.
func (c *EmbeddingsClient) Dimension() int {
	return c.dimension
}

// EmbeddingsRequest represents the request payload for the embeddings API.
type EmbeddingsRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	TaskType string   `json:"task_type,omitempty"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// GenerateEmbedding returns one vector for the given text, consulting the
// cache first. A call past the timeout fails with ErrEmbeddingTimeout; any
// other provider failure wraps ErrEmbeddingProvider.
func (c *EmbeddingsClient) GenerateEmbedding(ctx context.Context, text, taskType string) ([]float32, error) {
	if c.Disabled {
		return make([]float32, c.dimension), nil
	}

	key := cacheKey(taskType, text)
	if vec, ok := c.cache.get(key); ok {
		return vec, nil
	}

	vec, err := c.embedOne(ctx, text, taskType)
	if err != nil {
		return nil, err
	}

	c.cache.put(key, vec)
	return vec, nil
}

// GenerateEmbeddingBatch returns one vector per input text, in order.
// Inputs are processed in sub-batches of at most 100 items; items within a
// sub-batch run concurrently, sub-batches run sequentially. Any single item
// failure fails the whole call; there is no partial success and no retry.
func (c *EmbeddingsClient) GenerateEmbeddingBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if c.Disabled {
		result := make([][]float32, len(texts))
		for i := range result {
			result[i] = make([]float32, c.dimension)
		}
		return result, nil
	}

	result := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += subBatchSize {
		end := start + subBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := c.embedSubBatch(ctx, texts, result, start, end, taskType); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// embedSubBatch fills result[start:end]. Cache hits are resolved on the
// calling goroutine; misses fan out concurrently. Cache writes happen only
// after the whole sub-batch succeeds.
func (c *EmbeddingsClient) embedSubBatch(ctx context.Context, texts []string, result [][]float32, start, end int, taskType string) error {
	var misses []int
	for i := start; i < end; i++ {
		if vec, ok := c.cache.get(cacheKey(taskType, texts[i])); ok {
			result[i] = vec
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, i := range misses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vec, err := c.embedOne(ctx, texts[i], taskType)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			result[i] = vec
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	for _, i := range misses {
		c.cache.put(cacheKey(taskType, texts[i]), result[i])
	}
	return nil
}

// embedOne performs a single provider call under the client timeout.
func (c *EmbeddingsClient) embedOne(ctx context.Context, text, taskType string) ([]float32, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultEmbeddingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vecs, err := c.embedRequest(ctx, []string{text}, taskType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrEmbeddingTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingProvider, err)
	}
	return vecs[0], nil
}

// embedRequest issues the HTTP call and validates count and vector size.
func (c *EmbeddingsClient) embedRequest(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)

	payload := EmbeddingsRequest{
		Model:    c.Model,
		Input:    texts,
		TaskType: taskType,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	result := make([][]float32, len(embeddingsResp.Data))
	for i, data := range embeddingsResp.Data {
		if len(data.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.dimension)
		}

		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}

	return result, nil
}
