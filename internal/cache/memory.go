package cache

import (
	"context"
	"sync"
	"time"

	"bank-sync-backend/internal/aggregator"
)

type memoryEntry struct {
	institutions []aggregator.Institution
	expiresAt    time.Time
}

// MemoryCache is a process-local InstitutionCache. Expired entries are
// dropped on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

func (m *MemoryCache) GetInstitutions(_ context.Context, country string) ([]aggregator.Institution, error) {
	key := institutionKey(country)

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	out := make([]aggregator.Institution, len(e.institutions))
	copy(out, e.institutions)
	return out, nil
}

func (m *MemoryCache) SetInstitutions(_ context.Context, country string, institutions []aggregator.Institution, ttl time.Duration) error {
	stored := make([]aggregator.Institution, len(institutions))
	copy(stored, institutions)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[institutionKey(country)] = memoryEntry{institutions: stored, expiresAt: m.now().Add(ttl)}
	return nil
}
