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

// Package cachecontrol parses the Cache-Control header grammar defined by
// https://httpwg.org/specs/rfc7234.html#header.cache-control.
package cachecontrol

import (
	"math"
	"strings"
	"time"
)

// Unset is the sentinel value of a numeric directive that was not present
// on the parsed header.
const Unset = time.Duration(-1)

// RequestDirectives holds the parsed request Cache-Control header.
// https://httpwg.org/specs/rfc7234.html#cache-request-directive
type RequestDirectives struct {
	// NoCache is true if the 'no-cache' directive is present. A cached
	// response must not be served without successful validation on the origin.
	NoCache bool

	// NoStore is true if the 'no-store' directive is present. Neither the
	// request nor any response to it may be stored.
	NoStore bool

	// MaxAge is the client's maximum acceptable response age.
	MaxAge time.Duration

	// MinFresh is the minimum freshness lifetime the client is willing to accept.
	MinFresh time.Duration

	// MaxStale is the staleness the client is willing to accept. If 'max-stale'
	// is present without a value, any amount of staleness is acceptable,
	// represented as math.MaxInt64.
	MaxStale time.Duration
}

// setDefaults resets all numeric fields to Unset.
func (d *RequestDirectives) setDefaults() {
	d.MaxAge = Unset
	d.MinFresh = Unset
	d.MaxStale = Unset
}

// ParseRequest parses a request Cache-Control header value.
func ParseRequest(header string) RequestDirectives {
	var d RequestDirectives
	d.setDefaults()

	if header == "" {
		return d
	}

	for _, directive := range strings.Split(header, ",") {
		name, arg := splitDirective(directive)
		switch strings.ToLower(name) {
		case "no-cache":
			d.NoCache = true
		case "no-store":
			d.NoStore = true
		case "max-age":
			d.MaxAge = parseDuration(arg)
		case "min-fresh":
			d.MinFresh = parseDuration(arg)
		case "max-stale":
			if arg == "" {
				d.MaxStale = time.Duration(math.MaxInt64)
			} else {
				d.MaxStale = parseDuration(arg)
			}
		}
	}
	return d
}

// ResponseDirectives holds the parsed response Cache-Control header.
// https://httpwg.org/specs/rfc7234.html#cache-response-directive
type ResponseDirectives struct {
	// NoCache is true if the 'no-cache' directive is present. The response
	// must not satisfy subsequent requests without successful revalidation.
	NoCache bool

	// NoStore is true if the 'no-store' directive is present.
	NoStore bool

	// Private is true if the 'private' directive is present.
	Private bool

	// MustRevalidate is true if the 'must-revalidate' directive is present.
	MustRevalidate bool

	// ProxyRevalidate is true if the 'proxy-revalidate' directive is present.
	ProxyRevalidate bool

	// NoTransform is true if the 'no-transform' directive is present.
	NoTransform bool

	// Public is true if the 'public' directive is present.
	Public bool

	// MaxAge is the 'max-age' value, or Unset.
	MaxAge time.Duration

	// SMaxAge is the 's-maxage' value, or Unset.
	SMaxAge time.Duration

	// StaleWhileRevalidate is the 'stale-while-revalidate' value, or Unset.
	StaleWhileRevalidate time.Duration

	// StaleIfError is the 'stale-if-error' value, or Unset.
	StaleIfError time.Duration
}

// setDefaults resets all numeric fields to Unset.
func (d *ResponseDirectives) setDefaults() {
	d.MaxAge = Unset
	d.SMaxAge = Unset
	d.StaleWhileRevalidate = Unset
	d.StaleIfError = Unset
}

// ParseResponse parses a response Cache-Control header value.
func ParseResponse(header string) ResponseDirectives {
	var d ResponseDirectives
	d.setDefaults()

	if header == "" {
		return d
	}

	for _, directive := range strings.Split(header, ",") {
		name, arg := splitDirective(directive)
		switch strings.ToLower(name) {
		case "no-cache":
			d.NoCache = true
		case "no-store":
			d.NoStore = true
		case "private":
			d.Private = true
		case "must-revalidate":
			d.MustRevalidate = true
		case "proxy-revalidate":
			d.ProxyRevalidate = true
		case "no-transform":
			d.NoTransform = true
		case "public":
			d.Public = true
		case "max-age":
			d.MaxAge = parseDuration(arg)
		case "s-maxage":
			d.SMaxAge = parseDuration(arg)
		case "stale-while-revalidate":
			d.StaleWhileRevalidate = parseDuration(arg)
		case "stale-if-error":
			d.StaleIfError = parseDuration(arg)
		}
	}
	return d
}

// splitDirective splits a single directive into its name and optional argument.
// Grammar (https://httpwg.org/specs/rfc7234.html#header.cache-control):
//
//	Cache-Control   = 1#cache-directive
//	cache-directive = token [ "=" ( token / quoted-string ) ]
func splitDirective(s string) (name string, arg string) {
	if strings.ContainsRune(s, '=') {
		split := strings.SplitN(strings.TrimSpace(s), "=", 2)
		return strings.TrimSpace(split[0]), strings.Trim(strings.TrimSpace(split[1]), `"'`)
	}
	return strings.TrimSpace(s), ""
}

// parseDuration parses a delta-seconds directive argument.
// https://httpwg.org/specs/rfc7234.html#delta-seconds
// A malformed or negative argument leaves the directive unset, rather than
// failing the whole header.
func parseDuration(s string) time.Duration {
	if s == "" {
		return Unset
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil || d < 0 {
		return Unset
	}
	return d
}
