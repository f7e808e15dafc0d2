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

package interceptor

import (
	"net/http"

	"github.com/kacheio/httpcache/pkg/entry"
)

const (
	headerEtag            = "Etag"
	headerIfNoneMatch     = "If-None-Match"
	headerLastModified    = "Last-Modified"
	headerIfModifiedSince = "If-Modified-Since"
	headerDate            = "Date"
	headerAge             = "Age"
)

// ConditionalRequestStrategy decides whether and how a stale entry may be
// revalidated with the origin via a conditional request.
type ConditionalRequestStrategy interface {
	// CanRevalidate reports whether entry carries a validator this strategy
	// can build a conditional request from.
	CanRevalidate(e *entry.Entry) bool

	// CreateConditionalRequest returns a clone of req augmented with
	// conditional validator headers derived from entry.
	CreateConditionalRequest(req *http.Request, e *entry.Entry) *http.Request
}

// ValidatorStrategy is the default ConditionalRequestStrategy: it copies
// ETag into If-None-Match and Last-Modified into If-Modified-Since,
// falling back to the stored Date header when Last-Modified is absent.
type ValidatorStrategy struct{}

var _ ConditionalRequestStrategy = ValidatorStrategy{}

// CanRevalidate implements ConditionalRequestStrategy.
func (ValidatorStrategy) CanRevalidate(e *entry.Entry) bool {
	return e.Header.Get(headerEtag) != "" || e.Header.Get(headerLastModified) != "" || e.Header.Get(headerDate) != ""
}

// CreateConditionalRequest implements ConditionalRequestStrategy. It either
// returns the original request unmodified, or a shallow-cloned fork with
// copied headers the first time a validator needs injecting.
func (ValidatorStrategy) CreateConditionalRequest(ireq *http.Request, e *entry.Entry) *http.Request {
	req := ireq

	forked := false
	forkReq := func() {
		if !forked {
			clone := new(http.Request)
			*clone = *ireq
			clone.Header = make(http.Header, len(ireq.Header))
			for k, vv := range ireq.Header {
				clone.Header[k] = vv
			}
			req = clone
			forked = true
		}
	}

	if etag := e.Header.Get(headerEtag); etag != "" {
		forkReq()
		req.Header.Set(headerIfNoneMatch, etag)
	}
	if lastModified := e.Header.Get(headerLastModified); lastModified != "" {
		forkReq()
		req.Header.Set(headerIfModifiedSince, lastModified)
	} else if date := e.Header.Get(headerDate); date != "" {
		forkReq()
		req.Header.Set(headerIfModifiedSince, date)
	}

	return req
}
