package http

import (
	"testing"
	"time"

	"worksched/internal/core"
)

// TestLRUCachePerformance verifies the LRU cache performance and eviction
func TestLRUCachePerformance(t *testing.T) {
	cache := newLRUCache[core.SpendOverview](3, 100*time.Millisecond) // 3 items max, 100ms TTL

	start := time.Now()
	for i := 0; i < 1000; i++ {
		key := "test-key"
		overview := core.SpendOverview{TotalPence: 12345, CountAll: 7}
		cache.Set(key, overview)

		if _, found := cache.Get(key); !found {
			t.Errorf("Cache miss on iteration %d", i)
		}
	}
	duration := time.Since(start)

	t.Logf("1000 cache operations took %v", duration)

	// Should be very fast (well under 1ms per operation)
	if duration > 100*time.Millisecond {
		t.Errorf("Cache operations too slow: %v", duration)
	}
}

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	cache := newLRUCache[string](3, time.Hour) // 3 items max

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")
	cache.Set("key3", "value3")
	cache.Set("key4", "value4") // Should evict key1

	if _, found := cache.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}

	for _, key := range []string{"key2", "key3", "key4"} {
		if _, found := cache.Get(key); !found {
			t.Errorf("%s should still exist", key)
		}
	}
}

// TestLRUCacheTTLExpiration tests time-based expiration
func TestLRUCacheTTLExpiration(t *testing.T) {
	cache := newLRUCache[string](100, 50*time.Millisecond) // 50ms TTL

	cache.Set("key1", "value1")

	if _, found := cache.Get("key1"); !found {
		t.Error("key1 should exist immediately")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := cache.Get("key1"); found {
		t.Error("key1 should have expired")
	}
}

// TestLRUCacheCleanExpired tests the cleanup mechanism
func TestLRUCacheCleanExpired(t *testing.T) {
	cache := newLRUCache[string](100, 50*time.Millisecond)

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")
	cache.Set("key3", "value3")

	time.Sleep(60 * time.Millisecond)

	removed := cache.CleanExpired()
	if removed != 3 {
		t.Errorf("Expected 3 items cleaned, got %d", removed)
	}
}

// BenchmarkLRUCache benchmarks cache performance
func BenchmarkLRUCache(b *testing.B) {
	cache := newLRUCache[core.SpendOverview](1000, time.Hour)
	overview := core.SpendOverview{TotalPence: 9900, CountAll: 3}

	b.ResetTimer()

	// Mixed read/write workload
	for i := 0; i < b.N; i++ {
		key := "bench-key"
		if i%10 == 0 {
			cache.Set(key, overview)
		} else {
			cache.Get(key)
		}
	}
}
