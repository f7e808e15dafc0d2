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

// Package interceptor implements the C5 state machine: the decision DAG that
// composes the response store, the caching policy, and a conditional-request
// strategy into a single intercept(request, body, executor) entry point.
package interceptor

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kacheio/httpcache/pkg/clock"
	"github.com/kacheio/httpcache/pkg/entry"
	"github.com/kacheio/httpcache/pkg/policy"
	"github.com/kacheio/httpcache/pkg/store"
)

// Executor issues request (with body already attached) against the origin
// and returns its response. It is the interceptor's only suspension point.
type Executor func(req *http.Request) (*http.Response, error)

// Outcome classifies how a request was served, for logging/metrics/the
// X-Cache debug header.
type Outcome int

const (
	// OutcomeHit means a fresh entry was served without contacting the origin.
	OutcomeHit Outcome = iota
	// OutcomeRevalidated means a 304 from a conditional request refreshed a
	// stale entry.
	OutcomeRevalidated
	// OutcomeMiss means the origin's response was used instead of a cached
	// entry (no usable entry, or a conditional request that did not get a 304)
	// and, if cacheable, stored.
	OutcomeMiss
	// OutcomeStaleOnError means a stale entry was served because conditional
	// revalidation elicited a server error.
	OutcomeStaleOnError
	// OutcomeBypass means the request was never servable from cache at all.
	OutcomeBypass
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "HIT"
	case OutcomeRevalidated:
		return "REVALIDATED"
	case OutcomeMiss:
		return "MISS"
	case OutcomeStaleOnError:
		return "STALE"
	case OutcomeBypass:
		return "BYPASS"
	default:
		return "UNKNOWN"
	}
}

// Interceptor implements the C5 decision DAG (spec §4.5).
type Interceptor struct {
	Store    store.Store
	Policy   *policy.Policy
	Strategy ConditionalRequestStrategy
	Clock    clock.Clock

	// MaxResponseBodySize bounds the bytes CaptureBody drains before
	// aborting. Mirrors Policy.MaxResponseBodySize; kept separate so the
	// interceptor can be constructed without reaching into Policy.
	MaxResponseBodySize int64
}

// New creates an Interceptor. If strategy is nil, ValidatorStrategy is used.
// If c is nil, clock.System{} is used.
func New(s store.Store, p *policy.Policy, strategy ConditionalRequestStrategy, c clock.Clock) *Interceptor {
	if strategy == nil {
		strategy = ValidatorStrategy{}
	}
	if c == nil {
		c = clock.System{}
	}
	return &Interceptor{
		Store:               s,
		Policy:              p,
		Strategy:            strategy,
		Clock:               c,
		MaxResponseBodySize: p.MaxResponseBodySize,
	}
}

// Intercept handles one request through the full caching decision flow.
//
//	if policy.is_servable_from_cache(request):
//	    entry ← store.get(request)
//	    if entry != none:
//	        if policy.is_cached_response_usable(request, entry, now):
//	            return entry with Age header set
//	        else if strategy.can_revalidate(entry):
//	            return execute_and_cache_conditional(cond, entry)
//	    return execute_and_cache(request)
func (i *Interceptor) Intercept(req *http.Request, body []byte, executor Executor) (*http.Response, Outcome, error) {
	req = withBody(req, body)

	if !i.Policy.IsServableFromCache(req) {
		resp, err := executor(req)
		return resp, OutcomeBypass, err
	}

	key := store.Key(req)
	now := i.Clock.Now()
	cached, ok := i.Store.Get(req.Context(), key)

	if ok {
		if i.Policy.IsCachedResponseUsable(req, cached, now) {
			view := entry.NewView(cached, int64(cached.CurrentAge(now).Seconds()))
			return view.Response(req), OutcomeHit, nil
		}
		if i.Strategy.CanRevalidate(cached) {
			cond := i.Strategy.CreateConditionalRequest(req, cached)
			return i.executeAndCacheConditional(cond, cached, executor)
		}
	}

	return i.executeAndCache(req, executor)
}

// executeAndCacheConditional implements decision branch (B).
func (i *Interceptor) executeAndCacheConditional(cond *http.Request, cached *entry.Entry, executor Executor) (*http.Response, Outcome, error) {
	tSent := i.Clock.Now()
	resp, err := executor(cond)
	if err != nil {
		return resp, OutcomeMiss, err
	}
	tRecv := i.Clock.Now()

	key := store.Key(cond)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		_ = resp.Body.Close()
		refreshResp := &http.Response{
			StatusCode: cached.Status,
			Header:     mergeRevalidatedHeaders(cached.Header, resp.Header),
			Body:       io.NopCloser(bytes.NewReader(cached.Body)),
		}
		if _, putErr := i.Store.Put(cond.Context(), key, refreshResp, tSent, tRecv, i.MaxResponseBodySize); putErr != nil {
			log.Warn().Err(putErr).Str("cache-key", key).Msg("failed to refresh revalidated entry")
			view := entry.NewView(cached, int64(cached.CurrentAge(i.Clock.Now()).Seconds()))
			return view.Response(cond), OutcomeRevalidated, nil
		}
		refreshed, ok := i.Store.Get(cond.Context(), key)
		if !ok {
			view := entry.NewView(cached, int64(cached.CurrentAge(i.Clock.Now()).Seconds()))
			return view.Response(cond), OutcomeRevalidated, nil
		}
		view := entry.NewView(refreshed, int64(refreshed.CurrentAge(i.Clock.Now()).Seconds()))
		return view.Response(cond), OutcomeRevalidated, nil

	case i.Policy.IsResponseCacheable(cond, resp):
		stored, putErr := i.Store.Put(cond.Context(), key, resp, tSent, tRecv, i.MaxResponseBodySize)
		if putErr != nil {
			log.Warn().Err(putErr).Str("cache-key", key).Msg("failed to cache revalidated response")
			return resp, OutcomeMiss, nil
		}
		view := entry.NewView(stored, int64(stored.CurrentAge(i.Clock.Now()).Seconds()))
		return view.Response(cond), OutcomeMiss, nil

	case resp.StatusCode >= 500 && resp.StatusCode < 600 && i.Policy.CanServeStaleResponseIfError(cached):
		_ = resp.Body.Close()
		view := entry.NewView(cached, int64(cached.CurrentAge(i.Clock.Now()).Seconds()))
		return view.Response(cond), OutcomeStaleOnError, nil

	default:
		return resp, OutcomeMiss, nil
	}
}

// executeAndCache implements decision branch (C).
func (i *Interceptor) executeAndCache(req *http.Request, executor Executor) (*http.Response, Outcome, error) {
	tSent := i.Clock.Now()
	resp, err := executor(req)
	if err != nil {
		return resp, OutcomeMiss, err
	}
	tRecv := i.Clock.Now()

	if !i.Policy.IsResponseCacheable(req, resp) {
		return resp, OutcomeMiss, nil
	}

	key := store.Key(req)
	stored, putErr := i.Store.Put(req.Context(), key, resp, tSent, tRecv, i.MaxResponseBodySize)
	if putErr != nil {
		log.Warn().Err(putErr).Str("cache-key", key).Msg("failed to store cacheable response")
		return resp, OutcomeMiss, nil
	}

	view := entry.NewView(stored, int64(stored.CurrentAge(i.Clock.Now()).Seconds()))
	return view.Response(req), OutcomeMiss, nil
}

// headersNotRevalidated lists response headers a 304's values must not
// overwrite on the cached representation they revalidate.
// https://httpwg.org/specs/rfc7234.html#section-4.3.4
var headersNotRevalidated = map[string]struct{}{
	"Content-Range":  {},
	"Content-Length": {},
	headerEtag:       {},
	"Vary":           {},
}

// mergeRevalidatedHeaders builds the header set for a cached representation
// that a 304 response has just revalidated: cachedHeader is the base, with
// respHeader's fields merged in except those in headersNotRevalidated, and
// Age cleared since a freshly validated response has no accumulated age.
func mergeRevalidatedHeaders(cachedHeader, respHeader http.Header) http.Header {
	merged := cachedHeader.Clone()
	merged.Del(headerAge)
	for k, vv := range respHeader {
		if _, skip := headersNotRevalidated[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		merged[http.CanonicalHeaderKey(k)] = vv
	}
	return merged
}

// withBody attaches body to req as its outgoing request body, if non-nil.
func withBody(req *http.Request, body []byte) *http.Request {
	if body == nil {
		return req
	}
	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(body))
	clone.ContentLength = int64(len(body))
	return clone
}
