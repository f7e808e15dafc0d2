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

// Package config holds the root YAML-loadable configuration, scoped to the
// three construction-time settings the spec allows: cache policy, store
// backend selection, and logging.
package config

import (
	"errors"
	"fmt"

	"github.com/kacheio/httpcache/pkg/logger"
	"github.com/kacheio/httpcache/pkg/store/disk"
	"github.com/kacheio/httpcache/pkg/store/memcache"
	"github.com/kacheio/httpcache/pkg/store/redis"
)

// Backend names accepted by Store.Backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDisk     = "disk"
	BackendMemcache = "memcache"
)

var errUnknownBackend = errors.New("httpcache/config: unknown store backend")

// Configuration is the root configuration.
type Configuration struct {
	Policy PolicyConfig `yaml:"policy"`
	Store  StoreConfig  `yaml:"store"`
	Log    *logger.Config `yaml:"logging"`
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	return errors.Join(
		c.Policy.Validate(),
		c.Store.Validate(),
	)
}

// PolicyConfig configures the caching policy decision engine (C4).
type PolicyConfig struct {
	// IsSharedCache selects shared-cache semantics.
	IsSharedCache bool `yaml:"shared_cache"`

	// MaxResponseBodySize bounds cacheable response bodies, in bytes. Zero
	// means unbounded.
	MaxResponseBodySize int64 `yaml:"max_response_body_size"`

	// DefaultFreshnessSeconds is the fallback freshness lifetime applied when
	// a response carries no explicit freshness information. Zero means
	// policy.DefaultFreshness.
	DefaultFreshnessSeconds int64 `yaml:"default_freshness_seconds"`
}

// Validate validates the PolicyConfig.
func (p *PolicyConfig) Validate() error {
	if p.MaxResponseBodySize < 0 {
		return fmt.Errorf("httpcache/config: max_response_body_size must not be negative")
	}
	return nil
}

// StoreConfig selects and configures the response store backend (C3).
type StoreConfig struct {
	// Backend names the store implementation: "memory" (default), "redis",
	// "disk", or "memcache".
	Backend string `yaml:"backend"`

	MaxEntries int `yaml:"max_entries,omitempty"`

	Redis    *redis.Config    `yaml:"redis,omitempty"`
	Disk     *disk.Config     `yaml:"disk,omitempty"`
	Memcache *memcache.Config `yaml:"memcache,omitempty"`
}

// Validate validates the StoreConfig.
func (s *StoreConfig) Validate() error {
	switch s.Backend {
	case "", BackendMemory:
		return nil
	case BackendRedis:
		if s.Redis == nil {
			return fmt.Errorf("httpcache/config: store.redis section required for backend %q", BackendRedis)
		}
		return s.Redis.Validate()
	case BackendDisk:
		if s.Disk == nil {
			return fmt.Errorf("httpcache/config: store.disk section required for backend %q", BackendDisk)
		}
		return nil
	case BackendMemcache:
		if s.Memcache == nil {
			return fmt.Errorf("httpcache/config: store.memcache section required for backend %q", BackendMemcache)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, s.Backend)
	}
}
