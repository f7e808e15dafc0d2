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

// Package policy implements the RFC 7234 / RFC 5861 cacheability and
// freshness predicates: the caching policy decision engine.
package policy

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kacheio/httpcache/pkg/cachecontrol"
	"github.com/kacheio/httpcache/pkg/entry"
)

// DefaultFreshness is the fallback freshness lifetime used when a response
// carries no explicit freshness information.
const DefaultFreshness = 3600 * time.Second

// cacheableStatusCodes holds the heuristically cacheable status codes per
// https://tools.ietf.org/html/rfc7231#section-6.1.
var cacheableStatusCodes = map[int]struct{}{
	http.StatusOK:                   {},
	http.StatusNonAuthoritativeInfo: {},
	http.StatusNoContent:            {},
	http.StatusMultipleChoices:      {},
	http.StatusMovedPermanently:     {},
	http.StatusNotFound:             {},
	http.StatusMethodNotAllowed:     {},
	http.StatusGone:                 {},
	http.StatusRequestURITooLong:    {},
	http.StatusNotImplemented:       {},
}

// Policy is the caching policy decision engine (C4). It is safe for
// concurrent use; DefaultFreshness may be updated at runtime.
type Policy struct {
	// IsSharedCache selects shared-cache semantics (s-maxage, proxy-revalidate,
	// Authorization handling) versus private-cache semantics.
	IsSharedCache bool

	// MaxResponseBodySize is the upper bound a response's declared
	// Content-Length must respect to be cacheable.
	MaxResponseBodySize int64

	defaultFreshness atomic.Int64 // nanoseconds
}

// New creates a Policy with the given shared-cache mode and body size bound.
// DefaultFreshness starts at policy.DefaultFreshness.
func New(isSharedCache bool, maxResponseBodySize int64) *Policy {
	p := &Policy{IsSharedCache: isSharedCache, MaxResponseBodySize: maxResponseBodySize}
	p.defaultFreshness.Store(int64(DefaultFreshness))
	return p
}

// DefaultFreshness returns the current default freshness lifetime.
func (p *Policy) DefaultFreshness() time.Duration {
	return time.Duration(p.defaultFreshness.Load())
}

// SetDefaultFreshness updates the default freshness lifetime.
func (p *Policy) SetDefaultFreshness(d time.Duration) {
	p.defaultFreshness.Store(int64(d))
}

// IsServableFromCache reports whether a request may be satisfied from cache
// at all, independent of any particular cached entry (spec §4.4.1).
func (p *Policy) IsServableFromCache(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.Header.Get("Range") != "" {
		return false
	}
	cc := cachecontrol.ParseRequest(req.Header.Get("Cache-Control"))
	if cc.NoCache || cc.NoStore {
		return false
	}
	if cc.MaxAge == 0 {
		return false
	}
	return true
}

// IsCachedResponseUsable reports whether a previously stored entry may be
// served directly, without revalidation, at time now (spec §4.4.2).
func (p *Policy) IsCachedResponseUsable(req *http.Request, e *entry.Entry, now time.Time) bool {
	reqCC := cachecontrol.ParseRequest(req.Header.Get("Cache-Control"))
	respCC := cachecontrol.ParseResponse(e.Header.Get("Cache-Control"))

	age := e.CurrentAge(now)
	lifetime := p.FreshnessLifetime(e)

	revalidate := respCC.MustRevalidate || (p.IsSharedCache && respCC.ProxyRevalidate)

	switch {
	case !revalidate && reqCC.MaxStale != cachecontrol.Unset:
		if reqCC.MaxStale == time.Duration(math.MaxInt64) {
			return true
		}
		return lifetime+reqCC.MaxStale > age
	case reqCC.MinFresh != cachecontrol.Unset:
		return lifetime-reqCC.MinFresh > age
	case reqCC.MaxAge != cachecontrol.Unset:
		return age < reqCC.MaxAge
	default:
		return lifetime > age
	}
}

// FreshnessLifetime computes the freshness lifetime of a stored entry
// (spec §4.4.3).
func (p *Policy) FreshnessLifetime(e *entry.Entry) time.Duration {
	respCC := cachecontrol.ParseResponse(e.Header.Get("Cache-Control"))

	if p.IsSharedCache && respCC.SMaxAge != cachecontrol.Unset && respCC.SMaxAge > 0 {
		return respCC.SMaxAge
	}
	if respCC.MaxAge != cachecontrol.Unset && respCC.MaxAge > 0 {
		return respCC.MaxAge
	}
	if expires := cachecontrol.ParseHTTPDate(e.Header.Get("Expires")); !expires.IsZero() {
		if date := cachecontrol.ParseHTTPDate(e.Header.Get("Date")); !date.IsZero() {
			return expires.Sub(date)
		}
	}
	return p.DefaultFreshness()
}

// IsResponseCacheable reports whether a response to req may be stored
// (spec §4.4.4).
func (p *Policy) IsResponseCacheable(req *http.Request, resp *http.Response) bool {
	if !p.IsServableFromCache(req) {
		return false
	}
	if _, ok := cacheableStatusCodes[resp.StatusCode]; !ok {
		return false
	}

	respCC := cachecontrol.ParseResponse(resp.Header.Get("Cache-Control"))
	if respCC.Private || respCC.NoStore {
		return false
	}

	if p.IsSharedCache && req.Header.Get("Authorization") != "" {
		reauthorized := respCC.Public && respCC.SMaxAge != cachecontrol.Unset && respCC.SMaxAge > 0
		if !reauthorized {
			return false
		}
	}

	if resp.Header.Get("Vary") != "" {
		return false
	}

	date := cachecontrol.ParseHTTPDate(resp.Header.Get("Date"))
	if date.IsZero() {
		return false
	}

	if p.MaxResponseBodySize > 0 && resp.ContentLength > p.MaxResponseBodySize {
		return false
	}

	expiresInFuture := false
	if expires := cachecontrol.ParseHTTPDate(resp.Header.Get("Expires")); !expires.IsZero() {
		expiresInFuture = expires.After(date)
	}

	hasFreshnessData := (respCC.SMaxAge != cachecontrol.Unset && respCC.SMaxAge > 0) ||
		(respCC.MaxAge != cachecontrol.Unset && respCC.MaxAge > 0) ||
		respCC.Public || expiresInFuture

	return hasFreshnessData
}

// CanServeStaleResponseIfError reports whether a stale entry may be served
// when conditional revalidation elicits a server error (spec §4.4.5). The
// default policy returns true unconditionally, matching spec §9: stricter
// stale-if-error handling is left as an extension.
func (p *Policy) CanServeStaleResponseIfError(e *entry.Entry) bool {
	return true
}
