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

// Package store implements the response store (C3): a key→entry mapping
// with bounded body capture, pluggable across backends.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/kacheio/httpcache/pkg/entry"
)

// ErrBodyTooLarge is returned by Put when the response body exceeds the
// configured MaxResponseBodySize. Detected during capture, not after.
var ErrBodyTooLarge = errors.New("httpcache: response body exceeds max size")

// captureBufferSize is the fixed buffer size used to drain response bodies,
// so the size bound is enforced on cumulative bytes read rather than on an
// already-allocated final array.
const captureBufferSize = 4 * 1024

// Store is the response store collaborator (spec §4.3, §6). Implementations
// must be safe for concurrent Get/Put/Evict/Clear.
type Store interface {
	// Get looks up the entry stored under key. ok is false on a miss.
	Get(ctx context.Context, key string) (e *entry.Entry, ok bool)

	// Put captures resp's body under maxBodySize (see CaptureBody), constructs
	// an entry, stores it under key, and returns it. Afterwards resp.Body is a
	// readable body carrying the full response payload, whatever the outcome.
	Put(ctx context.Context, key string, resp *http.Response, requestTime, responseTime time.Time, maxBodySize int64) (*entry.Entry, error)

	// Evict removes the entry stored under key, if any.
	Evict(ctx context.Context, key string)

	// Clear removes all entries.
	Clear(ctx context.Context)
}

// Key derives the cache key for a request: the absolute request URI, with
// the HTTP method implicit as GET (spec §3 — only GET requests are cached).
// The derivation is deliberately header-independent.
func Key(req *http.Request) string {
	u := *req.URL
	u.Scheme = schemeOf(req)
	u.Host = req.Host
	return u.String()
}

func schemeOf(req *http.Request) string {
	if req.URL.Scheme != "" {
		return req.URL.Scheme
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// Hash produces a stable, fixed-width hash of a cache key, used by backends
// that prefer fixed-width keys over arbitrary URIs (e.g. disk filenames,
// memcache's 250-byte key limit).
func Hash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// CaptureBody reads resp.Body in fixed-size chunks and leaves resp with a
// readable body before returning, regardless of outcome: callers that end up
// not caching the response (ErrBodyTooLarge, a store failure) can still hand
// the caller back the real, intact origin response.
//
// As soon as cumulative bytes read exceed maxBodySize, CaptureBody stops
// reading and returns ErrBodyTooLarge alongside the bytes read so far. resp.Body
// is then replaced by a reader over those bytes followed by the unread rest of
// the original body, which stays open until the caller closes resp.Body. On
// every other return the original body has been read and closed, and
// resp.Body holds the captured bytes.
func CaptureBody(resp *http.Response, maxBodySize int64) ([]byte, error) {
	orig := resp.Body

	var body []byte
	buf := make([]byte, captureBufferSize)

	for {
		n, err := orig.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
			if maxBodySize > 0 && int64(len(body)) > maxBodySize {
				resp.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(body), orig), orig}
				return body, ErrBodyTooLarge
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = orig.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			resp.ContentLength = int64(len(body))
			return body, err
		}
	}

	_ = orig.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return body, nil
}
