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

// Package cfg holds pravaha's core configuration: a plain struct built
// through functional options, plus its defaults.
//
// This package never reads an environment variable or a flag itself —
// the core consumes no CLI or environment input. The demo CLI
// (cmd/pravahactl) owns the viper/pflag/cobra binding and translates
// flags into Option values before calling into the core.
package cfg

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhythmcache/pravaha/clock"
	"github.com/rhythmcache/pravaha/internal/transport"
)

// Defaults.
const (
	DefaultChunkSize              = 262144
	DefaultCacheMaxBytesChunks    = 16 // cache_max_bytes = 16 * chunk_size
	DefaultReadAhead              = true
	DefaultReadAheadChunks        = 4
	DefaultRetryMaxAttempts       = 3
	DefaultRetryInitialBackoff    = 100 * time.Millisecond
	DefaultRetryBackoffMultiplier = 2.0
	DefaultRetryMaxBackoff        = 10 * time.Second
	DefaultRetryJitterFraction    = 0.2
	DefaultRequestTimeout         = 30 * time.Second
	// DefaultPrefetchQueueCapacity bounds the background worker's work
	// queue.
	DefaultPrefetchQueueCapacity = 64
)

// Config is the Filesystem's validated configuration. Build one with
// New and a slice of Option values; do not construct the struct
// literal directly outside this package, since New applies defaults
// for zero-valued fields.
type Config struct {
	ChunkSize       uint64
	CacheMaxBytes   uint64
	ReadAhead       bool
	ReadAheadChunks uint

	RetryMaxAttempts       uint
	RetryInitialBackoff    time.Duration
	RetryBackoffMultiplier float64
	RetryMaxBackoff        time.Duration
	RetryJitterFraction    float64

	RequestTimeout        time.Duration
	PrefetchQueueCapacity int

	// ConditionalValidation attaches If-Match/If-Unmodified-Since to
	// fetches after a probe discovers an ETag/Last-Modified. Default
	// off.
	ConditionalValidation bool

	Transport transport.Transport
	Clock     clock.Clock
	Metrics   prometheus.Registerer
	LogWriter io.Writer
	LogJSON   bool
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithChunkSize sets the chunk granularity. Must be positive;
// validated at Filesystem construction, not here, since Option
// application itself cannot fail.
func WithChunkSize(bytes uint64) Option {
	return func(c *Config) { c.ChunkSize = bytes }
}

// WithCacheMaxBytes sets the cap on cached chunk bytes.
func WithCacheMaxBytes(bytes uint64) Option {
	return func(c *Config) { c.CacheMaxBytes = bytes }
}

// WithReadAhead toggles the prefetcher.
func WithReadAhead(enabled bool) Option {
	return func(c *Config) { c.ReadAhead = enabled }
}

// WithReadAheadChunks sets the prefetcher's lookahead ceiling.
func WithReadAheadChunks(n uint) Option {
	return func(c *Config) { c.ReadAheadChunks = n }
}

// WithRetryMaxAttempts sets the retry controller's attempt budget.
func WithRetryMaxAttempts(n uint) Option {
	return func(c *Config) { c.RetryMaxAttempts = n }
}

// WithRetryInitialBackoff sets the first backoff delay.
func WithRetryInitialBackoff(d time.Duration) Option {
	return func(c *Config) { c.RetryInitialBackoff = d }
}

// WithRetryBackoffMultiplier sets the exponential growth factor.
func WithRetryBackoffMultiplier(f float64) Option {
	return func(c *Config) { c.RetryBackoffMultiplier = f }
}

// WithRetryMaxBackoff caps the backoff delay.
func WithRetryMaxBackoff(d time.Duration) Option {
	return func(c *Config) { c.RetryMaxBackoff = d }
}

// WithRetryJitterFraction sets the multiplicative jitter fraction f in
// [0,1] applied as a factor drawn from [1-f, 1+f].
func WithRetryJitterFraction(f float64) Option {
	return func(c *Config) { c.RetryJitterFraction = f }
}

// WithRequestTimeout sets the per-transport-call deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) { c.RequestTimeout = d }
}

// WithConditionalValidation enables the optional ETag/Last-Modified
// coherence mechanism.
func WithConditionalValidation(enabled bool) Option {
	return func(c *Config) { c.ConditionalValidation = enabled }
}

// WithTransport overrides the concrete Transport; nil (the default)
// selects transport.NewHTTPTransport.
func WithTransport(t transport.Transport) Option {
	return func(c *Config) { c.Transport = t }
}

// WithClock overrides the Clock backoff sleeps are issued against; nil
// selects clock.RealClock{}. Tests use clock.NewSimulatedClock.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) { c.Clock = clk }
}

// WithMetrics registers pravaha's counters/gauges against reg; nil
// (the default) disables metrics entirely.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Config) { c.Metrics = reg }
}

// WithLogWriter redirects the package logger's output; nil keeps the
// default (stderr). WithLogWriter is how a caller plugs a rotating
// file writer (e.g. github.com/natefinch/lumberjack, as the demo CLI
// does) into the core without the core opening any file itself.
func WithLogWriter(w io.Writer, json bool) Option {
	return func(c *Config) {
		c.LogWriter = w
		c.LogJSON = json
	}
}

// WithPrefetchQueueCapacity overrides the prefetch worker's bounded
// queue size.
func WithPrefetchQueueCapacity(n int) Option {
	return func(c *Config) { c.PrefetchQueueCapacity = n }
}

// New builds a Config from opts, filling every unset field with its
// default. CacheMaxBytes defaults to 16*ChunkSize using
// whatever ChunkSize opts settle on, unless WithCacheMaxBytes is itself
// among opts.
func New(opts ...Option) Config {
	c := Config{
		ChunkSize:              DefaultChunkSize,
		ReadAhead:              DefaultReadAhead,
		ReadAheadChunks:        DefaultReadAheadChunks,
		RetryMaxAttempts:       DefaultRetryMaxAttempts,
		RetryInitialBackoff:    DefaultRetryInitialBackoff,
		RetryBackoffMultiplier: DefaultRetryBackoffMultiplier,
		RetryMaxBackoff:        DefaultRetryMaxBackoff,
		RetryJitterFraction:    DefaultRetryJitterFraction,
		RequestTimeout:         DefaultRequestTimeout,
		PrefetchQueueCapacity:  DefaultPrefetchQueueCapacity,
	}

	cacheMaxBytesSet := false
	for _, opt := range opts {
		opt(&c)
		if c.CacheMaxBytes != 0 {
			cacheMaxBytesSet = true
		}
	}

	if !cacheMaxBytesSet {
		c.CacheMaxBytes = DefaultCacheMaxBytesChunks * c.ChunkSize
	}

	return c
}
