// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package redis implements a Redis-backed store.Store, for sharing cached
// entries across multiple cache processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kacheio/httpcache/pkg/entry"
	"github.com/kacheio/httpcache/pkg/store"
)

// ErrNoEndpoint is returned by Validate when no endpoint is configured.
var ErrNoEndpoint = errors.New("httpcache/store/redis: no endpoint configured")

// Config configures the Redis client backing a Store.
type Config struct {
	// Endpoint holds either a single host:port address, or a comma-separated
	// list of cluster/sentinel node addresses.
	Endpoint string `yaml:"endpoint"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// KeyPrefix namespaces all keys this store writes, so multiple stores may
	// safely share a single Redis instance/database.
	KeyPrefix string `yaml:"key_prefix"`

	// TTL bounds how long Redis retains an entry after it is written,
	// independent of freshness; a safety net against unbounded growth from
	// entries that are never explicitly evicted. Zero means no expiration.
	TTL time.Duration `yaml:"ttl"`
}

// Validate validates the Config.
func (c *Config) Validate() error {
	if len(c.Endpoint) == 0 {
		return ErrNoEndpoint
	}
	return nil
}

var _ store.Store = (*Store)(nil)

// Store is a Redis-backed store.Store. Entries are gob-encoded and written
// under KeyPrefix followed by the store.Hash of the cache key.
type Store struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Store and pings the configured endpoint.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    strings.Split(cfg.Endpoint, ","),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("httpcache/store/redis: ping: %w", err)
	}

	return &Store{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (s *Store) redisKey(key string) string {
	return s.prefix + store.Hash(key)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (*entry.Entry, bool) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
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
func (s *Store) Put(ctx context.Context, key string, resp *http.Response, requestTime, responseTime time.Time, maxBodySize int64) (*entry.Entry, error) {
	body, err := store.CaptureBody(resp, maxBodySize)
	if err != nil {
		return nil, err
	}

	e := entry.New(resp.StatusCode, resp.Header, body, requestTime, responseTime)

	data, err := e.Encode()
	if err != nil {
		return nil, fmt.Errorf("httpcache/store/redis: encode: %w", err)
	}

	if err := s.client.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("httpcache/store/redis: set: %w", err)
	}
	return e, nil
}

// Evict implements store.Store.
func (s *Store) Evict(ctx context.Context, key string) {
	s.client.Del(ctx, s.redisKey(key))
}

// Clear implements store.Store.
//
// Clear scans for all keys under the configured prefix and deletes them in
// batches, rather than issuing FLUSHDB, since the Redis instance may be
// shared with unrelated keyspaces.
func (s *Store) Clear(ctx context.Context) {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 128 {
			s.client.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		s.client.Del(ctx, batch...)
	}
}

// Close releases the underlying client's resources.
func (s *Store) Close() error {
	return s.client.Close()
}
