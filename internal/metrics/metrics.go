// Copyright 2025 The pravaha Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics wires pravaha's internals up to Prometheus. A
// Metrics value is safe to pass around and call from any goroutine; a
// nil *Metrics is valid and every method on it is a no-op, so a caller
// never has to check for a metrics sink before touching it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and gauges pravaha's cache, retry
// controller, and prefetcher report against.
type Metrics struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	bytesFetched    prometheus.Counter
	fetchRetries    prometheus.Counter
	inflightFetches prometheus.Gauge
	prefetchSubmit  prometheus.Counter
	prefetchDropped prometheus.Counter
}

// New registers pravaha's metrics against reg and returns a Metrics
// ready to use. If reg is nil, the returned Metrics records nothing;
// every method remains safe to call.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pravaha_cache_hits_total",
			Help: "Chunk cache lookups served without a transport fetch.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pravaha_cache_misses_total",
			Help: "Chunk cache lookups that required a transport fetch.",
		}),
		bytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pravaha_bytes_fetched_total",
			Help: "Bytes received from the origin across all chunk fetches.",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pravaha_fetch_retries_total",
			Help: "Retry attempts issued by the retry controller.",
		}),
		inflightFetches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pravaha_inflight_fetches",
			Help: "Chunk fetches currently in flight (single-flight leaders only).",
		}),
		prefetchSubmit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pravaha_prefetch_submitted_total",
			Help: "Chunks submitted to the prefetch worker queue.",
		}),
		prefetchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pravaha_prefetch_dropped_total",
			Help: "Prefetch submissions dropped because the work queue was full.",
		}),
	}

	reg.MustRegister(
		m.cacheHits, m.cacheMisses, m.bytesFetched, m.fetchRetries,
		m.inflightFetches, m.prefetchSubmit, m.prefetchDropped,
	)
	return m
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) BytesFetched(n int) {
	if m != nil {
		m.bytesFetched.Add(float64(n))
	}
}

func (m *Metrics) RetryAttempted() {
	if m != nil {
		m.fetchRetries.Inc()
	}
}

func (m *Metrics) FetchStarted() {
	if m != nil {
		m.inflightFetches.Inc()
	}
}

func (m *Metrics) FetchFinished() {
	if m != nil {
		m.inflightFetches.Dec()
	}
}

func (m *Metrics) PrefetchSubmitted() {
	if m != nil {
		m.prefetchSubmit.Inc()
	}
}

func (m *Metrics) PrefetchDropped() {
	if m != nil {
		m.prefetchDropped.Inc()
	}
}
