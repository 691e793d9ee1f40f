package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	assert.Equal(t, 2, c.Size())

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Second).WithClock(func() time.Time { return now })

	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.Set("x", "1")
	c.Set("y", "2")
	now = now.Add(2 * time.Second)
	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](1, 0).WithClock(func() time.Time { return now })
	c.Set("k", 7)
	now = now.Add(24 * time.Hour)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestLRUCache_DeletePurgeStats(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	c.Purge()
	assert.Equal(t, 0, c.Size())
}

func TestManager_Sweep(t *testing.T) {
	var reported int
	m := NewManager(func(n int) { reported = n })
	m.Register(CleanerFunc(func() int { return 2 }))
	m.Register(CleanerFunc(func() int { return 1 }))

	assert.Equal(t, 3, m.Sweep())
	assert.Equal(t, 3, reported)

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}
