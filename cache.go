package features

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const cacheShards = 16

// CacheKey identifies one feature value of one entity.
type CacheKey struct {
	EntityType string
	Feature    string
	Entity     string
}

func (k CacheKey) String() string {
	return k.EntityType + "/" + k.Feature + "/" + k.Entity
}

// Origin records how a cached value came to exist.
type Origin int

const (
	OriginComputed Origin = iota
	OriginStipulated
)

func (o Origin) String() string {
	switch o {
	case OriginComputed:
		return "computed"
	case OriginStipulated:
		return "stipulated"
	default:
		return "unknown"
	}
}

type CacheEntry struct {
	Value  any
	Origin Origin
}

type cacheShard struct {
	mu   sync.RWMutex
	data map[CacheKey]CacheEntry
}

// ValueCache holds feature values for the lifetime of a session. It never
// evicts.
type ValueCache struct {
	shards [cacheShards]*cacheShard
}

func NewValueCache() *ValueCache {
	c := &ValueCache{}
	for i := range c.shards {
		c.shards[i] = &cacheShard{data: make(map[CacheKey]CacheEntry)}
	}
	return c
}

func (c *ValueCache) shard(key CacheKey) *cacheShard {
	h := xxhash.New()
	_, _ = h.WriteString(key.EntityType)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(key.Feature)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(key.Entity)
	return c.shards[h.Sum64()%cacheShards]
}

func (c *ValueCache) Get(key CacheKey) (CacheEntry, bool) {
	s := c.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[key]
	return entry, ok
}

func (c *ValueCache) Set(key CacheKey, entry CacheEntry) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry
}

func (c *ValueCache) Contains(key CacheKey) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *ValueCache) Delete(key CacheKey) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Range calls fn for every entry until fn returns false. Order is
// unspecified.
func (c *ValueCache) Range(fn func(key CacheKey, entry CacheEntry) bool) {
	for _, s := range c.shards {
		s.mu.RLock()
		snapshot := make(map[CacheKey]CacheEntry, len(s.data))
		for k, v := range s.data {
			snapshot[k] = v
		}
		s.mu.RUnlock()

		for k, v := range snapshot {
			if !fn(k, v) {
				return
			}
		}
	}
}

func (c *ValueCache) Len() int {
	count := 0
	for _, s := range c.shards {
		s.mu.RLock()
		count += len(s.data)
		s.mu.RUnlock()
	}
	return count
}

func (c *ValueCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.data = make(map[CacheKey]CacheEntry)
		s.mu.Unlock()
	}
}
