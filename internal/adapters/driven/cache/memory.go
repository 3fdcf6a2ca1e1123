package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
	"github.com/xingh/docsray-mcp-sub001/internal/core/ports/driven"
)

// DefaultMemoryEntries bounds the in-memory layer when no size is configured.
const DefaultMemoryEntries = 512

type memEntry struct {
	result    domain.Result
	expiresAt time.Time
}

// Memory is the bounded in-memory cache layer with LRU eviction. Expired
// entries are treated as absent and lazily evicted on read.
type Memory struct {
	entries *lru.Cache[driven.CacheKey, memEntry]
	now     func() time.Time
}

// NewMemory creates the in-memory layer holding at most maxEntries results.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	entries, err := lru.New[driven.CacheKey, memEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries, now: time.Now}, nil
}

// Get returns the cached result, or ok=false when absent or expired.
func (m *Memory) Get(key driven.CacheKey) (*domain.Result, bool) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false
	}
	if m.now().After(entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false
	}
	result := entry.result
	return &result, true
}

// Put inserts or overwrites an entry with the given TTL.
func (m *Memory) Put(key driven.CacheKey, result *domain.Result, ttl time.Duration) {
	m.PutUntil(key, result, m.now().Add(ttl))
}

// PutUntil inserts an entry with an absolute expiry, used when re-populating
// from the disk layer so the original deadline is preserved.
func (m *Memory) PutUntil(key driven.CacheKey, result *domain.Result, expiresAt time.Time) {
	m.entries.Add(key, memEntry{result: *result, expiresAt: expiresAt})
}

// Invalidate removes every entry for the document identity.
func (m *Memory) Invalidate(identity domain.Identity) {
	for _, key := range m.entries.Keys() {
		if key.Identity == identity {
			m.entries.Remove(key)
		}
	}
}

// Clear removes all entries.
func (m *Memory) Clear() {
	m.entries.Purge()
}

// Len returns the number of live entries (including not-yet-evicted expired ones).
func (m *Memory) Len() int {
	return m.entries.Len()
}
