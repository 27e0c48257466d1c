package terminology

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	// DefaultShardCount is the default number of cache shards; a power of 2
	// so the shard index is a mask operation.
	DefaultShardCount = 64

	// DefaultCacheTTL bounds how long a resolved display is reused before a
	// long-lived deployment re-fetches it.
	DefaultCacheTTL = 15 * time.Minute
)

// Cache is a sharded, TTL-bounded cache of resolved displays keyed by
// (code, system, language). Reads are concurrent per shard; writes take the
// shard lock only, so cache population never blocks readers on other shards.
type Cache struct {
	shards    []*cacheShard
	shardMask uint32
	ttl       time.Duration
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]cachedDisplay
}

type cachedDisplay struct {
	display   string
	expiresAt time.Time
}

// NewCache creates a cache with the given shard count and TTL. Non-positive
// arguments fall back to the defaults.
func NewCache(shardCount int, ttl time.Duration) *Cache {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	shardCount = nextPowerOf2(shardCount)
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	shards := make([]*cacheShard, shardCount)
	for i := range shards {
		shards[i] = &cacheShard{entries: make(map[string]cachedDisplay)}
	}
	return &Cache{shards: shards, shardMask: uint32(shardCount - 1), ttl: ttl}
}

func cacheKey(code, system, language string) string {
	return code + "|" + system + "|" + language
}

func (c *Cache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()&c.shardMask]
}

// Get returns the cached display for the key, if present and fresh.
func (c *Cache) Get(code, system, language string) (string, bool) {
	key := cacheKey(code, system, language)
	s := c.shard(key)
	s.mu.RLock()
	cached, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(cached.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false
	}
	return cached.display, true
}

// Set stores a resolved display under the key with the cache TTL.
func (c *Cache) Set(code, system, language, display string) {
	key := cacheKey(code, system, language)
	s := c.shard(key)
	s.mu.Lock()
	s.entries[key] = cachedDisplay{display: display, expiresAt: time.Now().Add(c.ttl)}
	s.mu.Unlock()
}

// Len reports the number of cached entries, fresh or not.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
