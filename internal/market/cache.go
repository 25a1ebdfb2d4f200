package market

import (
	"sync"
	"time"
)

// SeriesCache caches fetched series per symbol+interval so interactive
// callers and the scheduler do not refetch within the TTL window.
type SeriesCache interface {
	Get(symbol, interval string, minBars int) (Series, bool)
	Put(symbol, interval string, series Series)
}

type cacheEntry struct {
	series    Series
	fetchedAt time.Time
}

type cacheShard struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
}

// MemorySeriesCache is a sharded in-memory cache with a fixed TTL.
// Entries are copied on the way in and out; cache memory is never aliased
// by a request.
type MemorySeriesCache struct {
	ttl    time.Duration
	shards []cacheShard
	now    func() time.Time
}

const cacheShardCount = 16

func NewMemorySeriesCache(ttl time.Duration) *MemorySeriesCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &MemorySeriesCache{ttl: ttl, shards: make([]cacheShard, cacheShardCount), now: time.Now}
	for i := range c.shards {
		c.shards[i] = cacheShard{data: make(map[string]cacheEntry)}
	}
	return c
}

func cacheKey(symbol, interval string) string { return symbol + "@" + interval }

func (c *MemorySeriesCache) shardFor(key string) *cacheShard {
	return &c.shards[fnv32(key)%uint32(len(c.shards))]
}

// Get returns a copy of the cached series when it is fresh and holds at
// least minBars candles.
func (c *MemorySeriesCache) Get(symbol, interval string, minBars int) (Series, bool) {
	key := cacheKey(symbol, interval)
	sh := c.shardFor(key)
	sh.mu.RLock()
	entry, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		sh.mu.Lock()
		// Recheck under write lock; a concurrent Put may have refreshed it.
		if cur, still := sh.data[key]; still && cur.fetchedAt == entry.fetchedAt {
			delete(sh.data, key)
		}
		sh.mu.Unlock()
		return nil, false
	}
	if len(entry.series) < minBars {
		return nil, false
	}
	return entry.series.Clone(), true
}

func (c *MemorySeriesCache) Put(symbol, interval string, series Series) {
	if symbol == "" || interval == "" || len(series) == 0 {
		return
	}
	key := cacheKey(symbol, interval)
	sh := c.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = cacheEntry{series: series.Clone(), fetchedAt: c.now()}
	sh.mu.Unlock()
}

func fnv32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
