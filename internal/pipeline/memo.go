package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/zeebo/xxh3"

	"bizdash/internal/cache"
)

// HashKey folds parts into a fixed-size key. Parts are NUL separated so that
// ("ab","c") and ("a","bc") differ.
func HashKey(parts ...string) string {
	h := xxh3.New()
	for _, p := range parts {
		_, _ = io.WriteString(h, p)
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum128()
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}

// Memo caches computed values keyed on the hash of their inputs.
type Memo[V any] struct {
	cache *cache.LRUCache[V]
}

// NewMemo keeps at most size results, each for at most ttl (0 = no expiry).
func NewMemo[V any](size int, ttl time.Duration) *Memo[V] {
	return &Memo[V]{cache: cache.NewLRUCache[V](size, ttl)}
}

// Do returns the cached value for parts or computes and stores it.
func (m *Memo[V]) Do(compute func() V, parts ...string) (V, bool) {
	key := HashKey(parts...)
	if v, ok := m.cache.Get(key); ok {
		return v, true
	}
	v := compute()
	m.cache.Set(key, v)
	return v, false
}

// Reset drops all cached values.
func (m *Memo[V]) Reset() { m.cache.Purge() }

// Cleaner exposes the underlying cache for periodic expiry sweeps.
func (m *Memo[V]) Cleaner() cache.Cleaner { return m.cache }
