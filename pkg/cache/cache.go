package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/toolbridge/sdk-mcp/pkg/result"
)

const defaultCapacity = 1024

// Cache memoizes invocation results by (tool name, canonical arguments) with
// a TTL and a bounded LRU eviction policy. Expired entries are dropped lazily
// on lookup. The mutex is held only for map and list bookkeeping, never
// across an underlying call.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	hits     uint64
	misses   uint64
	now      func() time.Time // injectable clock for testing
}

type entry struct {
	key       string
	value     *result.Invocation
	expiresAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// New creates a cache with the given capacity and TTL. A non-positive
// capacity falls back to the default.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Key derives the deterministic cache key for a tool call. Argument maps
// with identical contents produce identical keys regardless of insertion
// order, since encoding/json sorts map keys.
func Key(tool string, args map[string]any) string {
	payload, err := json.Marshal(map[string]any{"tool": tool, "args": args})
	if err != nil {
		// Unmarshalable arguments cannot be cached deterministically; fall
		// back to a name-only key that at least stays stable per tool.
		payload = []byte(tool)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached invocation for key, if present and fresh.
func (c *Cache) Get(key string) (*result.Invocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	ent := elem.Value.(*entry)
	if c.now().After(ent.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Set stores an invocation result, evicting the least recently used entry
// when capacity is exceeded.
func (c *Cache) Set(key string, value *result.Invocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		return
	}

	elem := c.lru.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

// Clear empties the cache and resets counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
	c.hits = 0
	c.misses = 0
}

// Len returns the number of stored entries, including not-yet-collected
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:   c.lru.Len(),
		Hits:   c.hits,
		Misses: c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
