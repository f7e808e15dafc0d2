package store

import (
	"context"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kacheio/httpcache/pkg/entry"
)

var _ Store = (*Memory)(nil)

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// MaxEntries bounds the number of entries the LRU retains. Zero means
	// DefaultMaxEntries.
	MaxEntries int
}

// DefaultMaxEntries is the default LRU capacity for the in-memory store.
const DefaultMaxEntries = 10_000

// Memory is the default, in-memory response store: a concurrency-safe LRU
// map from cache key to entry.
//
// Grounded on the teacher's inmemory.Provider, generalized to store entries
// directly (rather than opaque byte slices) since the in-process store has
// no serialization boundary to cross.
type Memory struct {
	mu    sync.RWMutex
	inner *lru.Cache[string, *entry.Entry]
}

// NewMemory creates a new in-memory store.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	inner, err := lru.New[string, *entry.Entry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{inner: inner}, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (*entry.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inner.Get(key)
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, resp *http.Response, requestTime, responseTime time.Time, maxBodySize int64) (*entry.Entry, error) {
	body, err := CaptureBody(resp, maxBodySize)
	if err != nil {
		return nil, err
	}

	e := entry.New(resp.StatusCode, resp.Header, body, requestTime, responseTime)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.Add(key, e)
	return e, nil
}

// Evict implements Store.
func (m *Memory) Evict(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.Remove(key)
}

// Clear implements Store.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inner.Purge()
}

// Len reports the number of entries currently stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inner.Len()
}
