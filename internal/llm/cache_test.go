package llm

import (
	"fmt"
	"strings"
	"testing"
)

func TestEmbeddingCache_PutGet(t *testing.T) {
	cache := newEmbeddingCache(10)

	key := cacheKey(TaskRetrievalQuery, "hello")
	if _, ok := cache.get(key); ok {
		t.Fatal("get() on empty cache returned a hit")
	}

	cache.put(key, []float32{1, 2, 3})
	vec, ok := cache.get(key)
	if !ok {
		t.Fatal("get() missed after put()")
	}
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("get() = %v, want [1 2 3]", vec)
	}
}

func TestEmbeddingCache_FIFOEviction(t *testing.T) {
	cache := newEmbeddingCache(3)

	for i := 0; i < 3; i++ {
		cache.put(fmt.Sprintf("key-%d", i), []float32{float32(i)})
	}

	// Re-reading key-0 does not refresh it; eviction ignores recency.
	if _, ok := cache.get("key-0"); !ok {
		t.Fatal("key-0 missing before eviction")
	}

	cache.put("key-3", []float32{3})

	if _, ok := cache.get("key-0"); ok {
		t.Error("key-0 survived eviction, want oldest-inserted evicted")
	}
	for i := 1; i <= 3; i++ {
		if _, ok := cache.get(fmt.Sprintf("key-%d", i)); !ok {
			t.Errorf("key-%d missing, want retained", i)
		}
	}
	if cache.len() != 3 {
		t.Errorf("len() = %d, want 3", cache.len())
	}
}

func TestEmbeddingCache_UpdateInPlace(t *testing.T) {
	cache := newEmbeddingCache(2)

	cache.put("a", []float32{1})
	cache.put("b", []float32{2})
	cache.put("a", []float32{9})

	// The update must not count as a new insertion.
	if cache.len() != 2 {
		t.Fatalf("len() = %d, want 2", cache.len())
	}
	vec, ok := cache.get("a")
	if !ok || vec[0] != 9 {
		t.Errorf("get(a) = %v/%v, want updated value", vec, ok)
	}

	cache.put("c", []float32{3})
	if _, ok := cache.get("a"); ok {
		t.Error("a survived eviction, but it is still the oldest insertion")
	}
}

func TestEmbeddingCache_Disabled(t *testing.T) {
	cache := newEmbeddingCache(0)

	cache.put("a", []float32{1})
	if _, ok := cache.get("a"); ok {
		t.Error("disabled cache stored an entry")
	}
	if cache.len() != 0 {
		t.Errorf("len() = %d, want 0", cache.len())
	}
}

func TestCacheKey(t *testing.T) {
	short := "short text"
	if got := cacheKey(TaskRetrievalQuery, short); got != TaskRetrievalQuery+":"+short {
		t.Errorf("cacheKey() = %q", got)
	}

	// Texts sharing the same long prefix collide under the same task type.
	prefix := strings.Repeat("a", cacheKeyPrefixLen)
	keyA := cacheKey(TaskRetrievalDocument, prefix+"tail one")
	keyB := cacheKey(TaskRetrievalDocument, prefix+"tail two")
	if keyA != keyB {
		t.Error("keys with identical prefixes should collide")
	}

	// Different task types never collide.
	if cacheKey(TaskRetrievalQuery, prefix) == cacheKey(TaskRetrievalDocument, prefix) {
		t.Error("keys with different task types should differ")
	}

	// The prefix is cut on rune boundaries.
	wide := strings.Repeat("界", cacheKeyPrefixLen+50)
	key := cacheKey(TaskSemanticSimilarity, wide)
	want := TaskSemanticSimilarity + ":" + strings.Repeat("界", cacheKeyPrefixLen)
	if key != want {
		t.Error("multi-byte text cut off mid-character")
	}
}
