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

// Package metrics exposes the Prometheus instrumentation for the cache: a
// request outcome counter and a stored-body-size histogram.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kacheio/httpcache/pkg/interceptor"
)

// Metrics holds the collectors registered against a prometheus.Registerer.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	StoreBytes    prometheus.Histogram
}

// New registers the cache's collectors against reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httpcache",
			Name:      "requests_total",
			Help:      "Total number of requests handled by the cache, by outcome.",
		}, []string{"outcome"}),

		StoreBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "httpcache",
			Name:      "store_bytes",
			Help:      "Size in bytes of response bodies written to the store.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}
}

// ObserveOutcome records the outcome of a single intercepted request. Use as
// an interceptor.Transport.OnOutcome hook.
func (m *Metrics) ObserveOutcome(outcome interceptor.Outcome) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome.String()).Inc()
}

// ObserveStoreBytes records the size of a body written to the store.
func (m *Metrics) ObserveStoreBytes(n int) {
	if m == nil {
		return
	}
	m.StoreBytes.Observe(float64(n))
}
