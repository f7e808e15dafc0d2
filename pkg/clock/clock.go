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

// Package clock provides a pluggable time source so that age and freshness
// arithmetic can be driven by a fake clock in tests instead of wall time.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a source of the current time. The interceptor and policy take the
// wall clock as an explicit input (spec §9: "the wall clock is passed into
// usability checks rather than read ambiently") via this abstraction.
type Clock interface {
	Now() time.Time
}

// System is the real wall-clock time.
type System struct{}

// Now returns the real current time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a controllable time source for tests.
type Fake struct {
	now int64
}

// NewFake returns a fake clock set to the given time.
func NewFake(now time.Time) *Fake {
	f := &Fake{}
	f.Set(now)
	return f
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	return time.Unix(0, atomic.LoadInt64(&f.now)).UTC()
}

// Set sets the fake current time.
func (f *Fake) Set(now time.Time) {
	atomic.StoreInt64(&f.now, now.UnixNano())
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	atomic.AddInt64(&f.now, int64(d))
}
