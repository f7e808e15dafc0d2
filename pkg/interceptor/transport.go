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
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// XCacheHeader is the debug header the Transport sets on the responses it
// returns when MarkResponses is true, reporting how the request was served.
const XCacheHeader = "X-Cache"

// Transport adapts an Interceptor to http.RoundTripper, so it can be dropped
// into any http.Client.
type Transport struct {
	// Next is the upstream RoundTripper used as the executor. If nil,
	// http.DefaultTransport is used.
	Next http.RoundTripper

	Interceptor *Interceptor

	// MarkResponses controls whether XCacheHeader is set on returned
	// responses.
	MarkResponses bool

	// OnOutcome, if set, is called with the outcome of every intercepted
	// request. Used to feed metrics without coupling this package to a
	// particular instrumentation library.
	OnOutcome func(Outcome)
}

// NewTransport returns a Transport wrapping the given Interceptor.
func NewTransport(i *Interceptor, next http.RoundTripper) *Transport {
	return &Transport{Next: next, Interceptor: i, MarkResponses: true}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		defer req.Body.Close()
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}

	resp, outcome, err := t.Interceptor.Intercept(req, body, t.execute)
	if err != nil {
		log.Debug().Err(err).Str("path", req.URL.Path).Msg("httpcache: upstream request failed")
		return resp, err
	}

	log.Debug().Str("cache-key", req.URL.String()).Str("x-cache", outcome.String()).Msg("httpcache: request served")

	if t.OnOutcome != nil {
		t.OnOutcome(outcome)
	}

	if t.MarkResponses && resp != nil {
		if resp.Header == nil {
			resp.Header = http.Header{}
		}
		resp.Header.Set(XCacheHeader, outcome.String())
	}
	return resp, nil
}

func (t *Transport) execute(req *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}
