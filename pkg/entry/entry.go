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

// Package entry holds the immutable cache entry and its age arithmetic
// (RFC 7234 §4.2.3).
package entry

import (
	"bytes"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/kacheio/httpcache/pkg/cachecontrol"
)

// Entry is an immutable snapshot of a cached origin response plus the timing
// metadata needed to compute its age. Once constructed, an Entry is never
// mutated — serving a response with an updated Age header is done through a
// View, not by writing back into the Entry (spec §9).
type Entry struct {
	// Body is the captured response body.
	Body []byte

	// Status is the HTTP status code of the origin response.
	Status int

	// Header is the header set as captured from the origin response.
	Header http.Header

	// requestTime is the wall-clock time the originating request was sent.
	requestTime time.Time

	// responseTime is the wall-clock time the response was received.
	responseTime time.Time

	// correctedInitialAge is the entry's age at the moment it was stored.
	correctedInitialAge time.Duration
}

// New constructs a new Entry from a captured response. requestTime must not
// be after responseTime.
func New(status int, header http.Header, body []byte, requestTime, responseTime time.Time) *Entry {
	if responseTime.Before(requestTime) {
		responseTime = requestTime
	}
	e := &Entry{
		Status:        status,
		Header:        header.Clone(),
		Body:          body,
		requestTime:   requestTime,
		responseTime:  responseTime,
	}
	e.correctedInitialAge = CorrectedInitialAge(header, requestTime, responseTime)
	return e
}

// RequestTime returns the time the originating request was sent.
func (e *Entry) RequestTime() time.Time { return e.requestTime }

// ResponseTime returns the time the response was received.
func (e *Entry) ResponseTime() time.Time { return e.responseTime }

// CorrectedInitialAge returns the entry's age at the moment it was stored.
func (e *Entry) CorrectedInitialAge() time.Duration { return e.correctedInitialAge }

// CurrentAge returns the entry's estimated age at the given wall-clock time.
// https://httpwg.org/specs/rfc7234.html#age.calculations
func (e *Entry) CurrentAge(now time.Time) time.Duration {
	residentTime := now.Sub(e.responseTime)
	if residentTime < 0 {
		residentTime = 0
	}
	return e.correctedInitialAge + residentTime
}

// CorrectedInitialAge computes the corrected initial age of a response given
// its Age/Date headers and the local request/response timestamps, per
// https://httpwg.org/specs/rfc7234.html#section-4.2.3. The response_delay
// refinement is intentionally omitted: request and response times are
// observed locally, so any delay is already captured in correctedAgeValue.
func CorrectedInitialAge(header http.Header, requestTime, responseTime time.Time) time.Duration {
	dateHeaderS := clampSeconds(cachecontrol.ParseHTTPDate(header.Get("Date")), responseTime)
	apparentAge := responseTime.Sub(dateHeaderS)
	if apparentAge < 0 {
		apparentAge = 0
	}

	ageHeader, err := time.ParseDuration(header.Get("Age") + "s")
	if err != nil || ageHeader < 0 {
		ageHeader = 0
	}
	correctedAgeValue := ageHeader + responseTime.Sub(requestTime)
	if correctedAgeValue < 0 {
		correctedAgeValue = 0
	}

	if apparentAge > correctedAgeValue {
		return apparentAge
	}
	return correctedAgeValue
}

// clampSeconds returns t, or fallback if t is the zero value (i.e. the Date
// header was missing or unparseable).
func clampSeconds(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

// gobEntry is the wire shape used for serialization, since encoding/gob
// skips the Entry's unexported timing fields.
type gobEntry struct {
	Body                []byte
	Status              int
	Header              http.Header
	RequestTime         time.Time
	ResponseTime        time.Time
	CorrectedInitialAge time.Duration
}

// Encode serializes the entry for storage in a byte-oriented backend.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(gobEntry{
		Body:                e.Body,
		Status:              e.Status,
		Header:              e.Header,
		RequestTime:         e.requestTime,
		ResponseTime:        e.responseTime,
		CorrectedInitialAge: e.correctedInitialAge,
	}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes an Entry previously produced by Encode.
func Decode(data []byte) (*Entry, error) {
	var g gobEntry
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&g); err != nil {
		return nil, err
	}
	return &Entry{
		Body:                g.Body,
		Status:              g.Status,
		Header:              g.Header,
		requestTime:         g.RequestTime,
		responseTime:        g.ResponseTime,
		correctedInitialAge: g.CorrectedInitialAge,
	}, nil
}
