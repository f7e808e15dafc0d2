// Package memcache implements a memcache-backed store.Store, using
// gomemcache to store gob-encoded entries in a memcache server.
package memcache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kacheio/httpcache/pkg/entry"
	"github.com/kacheio/httpcache/pkg/store"
)

// maxKeyLength is memcache's hard key length limit. Cache keys are hashed to
// a fixed 16-character hex digest, and memcacheKey truncates prefix+digest to
// this length when a long KeyPrefix would exceed it.
const maxKeyLength = 250

var _ store.Store = (*Store)(nil)

// Store is a memcache-backed store.Store.
type Store struct {
	client *memcache.Client

	// expiration is the memcache item TTL, independent of freshness
	// lifetime; a safety net bounding how long an entry survives without
	// being explicitly evicted. Zero means memcache's own default.
	expiration int32

	prefix string
}

// Config configures the memcache store.
type Config struct {
	// Servers lists memcache server addresses, with equal weight. A server
	// listed multiple times gets a proportional share of weight.
	Servers []string

	// Expiration is the memcache item TTL in seconds. Zero disables it.
	Expiration int32

	// KeyPrefix namespaces keys to avoid collision with unrelated data on a
	// shared memcache server.
	KeyPrefix string
}

// New creates a Store connected to the given memcache servers.
func New(cfg Config) *Store {
	return &Store{
		client:     memcache.New(cfg.Servers...),
		expiration: cfg.Expiration,
		prefix:     cfg.KeyPrefix,
	}
}

// NewWithClient creates a Store using an already-constructed memcache client.
func NewWithClient(client *memcache.Client, cfg Config) *Store {
	return &Store{client: client, expiration: cfg.Expiration, prefix: cfg.KeyPrefix}
}

func (s *Store) memcacheKey(key string) string {
	k := s.prefix + store.Hash(key)
	if len(k) > maxKeyLength {
		k = k[:maxKeyLength]
	}
	return k
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key string) (*entry.Entry, bool) {
	item, err := s.client.Get(s.memcacheKey(key))
	if err != nil {
		return nil, false
	}
	e, err := entry.Decode(item.Value)
	if err != nil {
		return nil, false
	}
	return e, true
}

// Put implements store.Store.
func (s *Store) Put(_ context.Context, key string, resp *http.Response, requestTime, responseTime time.Time, maxBodySize int64) (*entry.Entry, error) {
	body, err := store.CaptureBody(resp, maxBodySize)
	if err != nil {
		return nil, err
	}

	e := entry.New(resp.StatusCode, resp.Header, body, requestTime, responseTime)

	data, err := e.Encode()
	if err != nil {
		return nil, fmt.Errorf("httpcache/store/memcache: encode: %w", err)
	}

	item := &memcache.Item{
		Key:        s.memcacheKey(key),
		Value:      data,
		Expiration: s.expiration,
	}
	if err := s.client.Set(item); err != nil {
		return nil, fmt.Errorf("httpcache/store/memcache: set: %w", err)
	}
	return e, nil
}

// Evict implements store.Store.
func (s *Store) Evict(_ context.Context, key string) {
	_ = s.client.Delete(s.memcacheKey(key))
}

// Clear implements store.Store.
//
// memcache exposes no key-enumeration primitive, so Clear flushes the whole
// server. Callers sharing a memcache instance across unrelated keyspaces
// should not use this backend's Clear.
func (s *Store) Clear(_ context.Context) {
	_ = s.client.FlushAll()
}
