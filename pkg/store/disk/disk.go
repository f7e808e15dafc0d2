// Package disk implements a disk-backed store.Store, using diskv to
// supplement an in-memory index with persistent file storage.
package disk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"github.com/kacheio/httpcache/pkg/entry"
	"github.com/kacheio/httpcache/pkg/store"
)

// DefaultCacheSizeMax is the default in-memory cache size diskv keeps hot
// before falling back to disk reads, in bytes.
const DefaultCacheSizeMax = 100 * 1024 * 1024

// Config configures the disk store.
type Config struct {
	// BasePath is the directory entries are persisted under.
	BasePath string

	// CacheSizeMax bounds diskv's in-memory read cache. Zero means
	// DefaultCacheSizeMax.
	CacheSizeMax uint64
}

var _ store.Store = (*Store)(nil)

// Store is a disk-backed store.Store. Entries are gob-encoded and written as
// files named by the hash of their cache key.
type Store struct {
	d *diskv.Diskv
}

// New creates a Store rooted at cfg.BasePath.
func New(cfg Config) *Store {
	cacheSizeMax := cfg.CacheSizeMax
	if cacheSizeMax == 0 {
		cacheSizeMax = DefaultCacheSizeMax
	}
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     cfg.BasePath,
			Transform:    flatTransform,
			CacheSizeMax: cacheSizeMax,
		}),
	}
}

// flatTransform stores every entry directly under BasePath; key hashes are
// already fixed-width and collision-resistant, so no directory sharding is
// needed.
func flatTransform(string) []string { return []string{} }

func (s *Store) filename(key string) string {
	return store.Hash(key)
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key string) (*entry.Entry, bool) {
	data, err := s.d.Read(s.filename(key))
	if err != nil {
		return nil, false
	}
	e, err := entry.Decode(data)
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
		return nil, fmt.Errorf("httpcache/store/disk: encode: %w", err)
	}

	if err := s.d.Write(s.filename(key), data); err != nil {
		return nil, fmt.Errorf("httpcache/store/disk: write: %w", err)
	}
	return e, nil
}

// Evict implements store.Store.
func (s *Store) Evict(_ context.Context, key string) {
	_ = s.d.Erase(s.filename(key))
}

// Clear implements store.Store.
func (s *Store) Clear(_ context.Context) {
	_ = s.d.EraseAll()
}
