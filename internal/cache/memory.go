package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxEntries     = 10000
	memoryCleanupInterval = 5 * time.Minute
)

// MemoryStore is an in-process Store. Expired entries are never returned and
// are swept periodically until Close is called.
type MemoryStore struct {
	entries    map[string]*memoryEntry
	mu         sync.RWMutex
	maxEntries int
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithMaxEntries caps the number of entries before the oldest are evicted
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithClock replaces the time source, used in tests to step past expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates a new in-memory store and starts its cleanup goroutine
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanupLoop(memoryCleanupInterval)

	return m
}

// Get returns the value stored under key if it has not expired
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.now().Before(entry.expiresAt) {
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Set stores value under key for ttl. A non-positive ttl uses the default.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}

	m.entries[key] = &memoryEntry{
		value:     stored,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes key
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the cleanup goroutine
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// Stats returns cache statistics
func (m *MemoryStore) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"entries":  len(m.entries),
		"max_size": m.maxEntries,
		"hits":     m.hits.Load(),
		"misses":   m.misses.Load(),
	}
}

// evictOldest removes the oldest 10% of entries. Caller holds the write lock.
func (m *MemoryStore) evictOldest() {
	evictCount := m.maxEntries / 10
	if evictCount < 1 {
		evictCount = 1
	}

	type entryAge struct {
		key string
		age time.Time
	}

	entries := make([]entryAge, 0, len(m.entries))
	for key, entry := range m.entries {
		entries = append(entries, entryAge{key: key, age: entry.createdAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	for i := 0; i < evictCount && i < len(entries); i++ {
		delete(m.entries, entries[i].key)
	}
}

// cleanupLoop periodically removes expired entries
func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// cleanup removes expired entries
func (m *MemoryStore) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
