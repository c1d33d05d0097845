package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/toolbridge/sdk-mcp/pkg/result"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(capacity int, ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := New(capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("library.List", map[string]any{"limit": 10, "filter": "x"})
	b := Key("library.List", map[string]any{"filter": "x", "limit": 10})
	if a != b {
		t.Error("identical argument maps must produce identical keys")
	}

	if Key("library.List", map[string]any{"limit": 10}) == Key("library.List", map[string]any{"limit": 11}) {
		t.Error("different arguments must produce different keys")
	}
	if Key("library.List", nil) == Key("library.Get", nil) {
		t.Error("different tools must produce different keys")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	key := Key("t", nil)

	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache returned a value")
	}

	c.Set(key, result.Success("value"))
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Value != "value" {
		t.Errorf("got %v", got.Value)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	key := Key("t", nil)
	c.Set(key, result.Success(1))

	clock.Advance(59 * time.Second)
	if _, ok := c.Get(key); !ok {
		t.Fatal("entry expired before TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Fatal("entry survived past TTL")
	}
	if c.Len() != 0 {
		t.Error("expired entry not evicted on lookup")
	}
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), result.Success(i))
	}

	// Touch k0 so k1 becomes the eviction candidate.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("k0 missing")
	}
	c.Set("k3", result.Success(3))

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	c.Set("a", result.Success(1))
	c.Set("b", result.Success(2))
	c.Get("a")

	c.Clear()
	if c.Len() != 0 {
		t.Error("cache not empty after clear")
	}
	stats := c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("counters not reset: %+v", stats)
	}
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	c.Set("a", result.Success(1))
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Errorf("hit rate = %v", stats.HitRate)
	}
}
