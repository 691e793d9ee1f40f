package cache

import (
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// CleanerFunc adapts a function to Cleaner.
type CleanerFunc func() int

func (f CleanerFunc) CleanExpired() int { return f() }

// Manager periodically cleans every registered cache.
type Manager struct {
	mu        sync.Mutex
	cleaners  []Cleaner
	onCleaned func(removed int)
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	started   bool
}

// NewManager creates a manager. onCleaned, if non-nil, is called after each sweep
// that removed at least one entry.
func NewManager(onCleaned func(removed int)) *Manager {
	return &Manager{
		onCleaned: onCleaned,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	m.cleaners = append(m.cleaners, c)
	m.mu.Unlock()
}

// Sweep runs one cleanup pass and returns the number of removed entries.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	cleaners := append([]Cleaner(nil), m.cleaners...)
	m.mu.Unlock()

	total := 0
	for _, c := range cleaners {
		total += c.CleanExpired()
	}
	if total > 0 && m.onCleaned != nil {
		m.onCleaned(total)
	}
	return total
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine started by StartCleanup.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}
	})
}
