package llm

import "sync"

// cacheKeyPrefixLen bounds how much of the text participates in the cache
// key. Two long texts sharing the same first 200 characters under the same
// task type collide and return the same cached vector.
const cacheKeyPrefixLen = 200

// embeddingCache is a bounded in-process cache of embedding vectors.
// Eviction is oldest-inserted-first; there is no recency tracking.
type embeddingCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string][]float32
	order   []string
}

func newEmbeddingCache(maxSize int) *embeddingCache {
	return &embeddingCache{
		maxSize: maxSize,
		entries: make(map[string][]float32),
	}
}

// cacheKey builds the cache key from the task type and the text prefix.
// The prefix is measured in runes so multi-byte text is not cut mid-character.
func cacheKey(taskType, text string) string {
	runes := []rune(text)
	if len(runes) > cacheKeyPrefixLen {
		runes = runes[:cacheKeyPrefixLen]
	}
	return taskType + ":" + string(runes)
}

func (c *embeddingCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.entries[key]
	return vec, ok
}

func (c *embeddingCache) put(key string, vec []float32) {
	if c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = vec
		return
	}

	if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = vec
	c.order = append(c.order, key)
}

func (c *embeddingCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
