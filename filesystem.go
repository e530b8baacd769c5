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

// Package pravaha turns a remote byte-addressable HTTP(S) resource
// into a seekable, read-only, positionally-readable file.
// A Filesystem owns the configuration, chunk cache, transport, retry
// controller, and background prefetch worker shared by every File it
// opens; File is the thin per-open handle.
//
// This package never touches the network directly — that is
// internal/transport's job — and never reads an environment variable
// or flag; cfg.Config is built entirely by the caller.
package pravaha

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rhythmcache/pravaha/cfg"
	"github.com/rhythmcache/pravaha/chunk"
	"github.com/rhythmcache/pravaha/clock"
	"github.com/rhythmcache/pravaha/common"
	"github.com/rhythmcache/pravaha/internal/cache"
	"github.com/rhythmcache/pravaha/internal/logger"
	"github.com/rhythmcache/pravaha/internal/metrics"
	"github.com/rhythmcache/pravaha/internal/prefetch"
	"github.com/rhythmcache/pravaha/internal/transport"
)

// Open is a package-level convenience: build a private single-use
// Filesystem from opts, open
// url against it, and hand back a File that closes its own Filesystem
// when the caller closes it. Callers opening many URLs against shared
// cache/transport/prefetch state should build one Filesystem with
// NewFilesystem and call its Open method directly instead.
func Open(ctx context.Context, rawURL string, mode string, opts ...cfg.Option) (*File, error) {
	fs, err := NewFilesystem(opts...)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(ctx, rawURL, mode)
	if err != nil {
		fs.Close()
		return nil, err
	}
	f.ownsFS = true
	return f, nil
}

// descriptor is what a Filesystem learns about a URL the first time it
// is opened, and reuses for every subsequent Open of the same URL.
type descriptor struct {
	totalSize     *uint64
	supportsRange bool
	etag          *string
	lastModified  *string
}

// Filesystem is the shared container: it owns the chunk cache, the
// transport, the retry controller, and (when
// read-ahead is enabled) the single background prefetch worker. Many
// File handles may share one Filesystem; Filesystem methods are safe
// for concurrent use.
type Filesystem struct {
	cfg       cfg.Config
	transport transport.Transport
	retry     *transport.Controller
	cache     *cache.Cache
	metrics   *metrics.Metrics

	worker       *prefetch.Worker
	workerCancel context.CancelFunc

	mu          sync.Mutex
	descriptors map[string]*descriptor
}

// NewFilesystem validates opts and builds a Filesystem. It performs no
// I/O itself; Open is what probes a URL.
func NewFilesystem(opts ...cfg.Option) (*Filesystem, error) {
	c := cfg.New(opts...)

	if c.ChunkSize == 0 {
		return nil, common.NewError(common.InvalidArgument, "new_filesystem", fmt.Errorf("chunk_size must be positive"))
	}
	if c.CacheMaxBytes < c.ChunkSize {
		return nil, common.NewError(common.InvalidArgument, "new_filesystem", fmt.Errorf("cache_max_bytes must be at least one chunk"))
	}
	if c.RetryJitterFraction < 0 || c.RetryJitterFraction > 1 {
		return nil, common.NewError(common.InvalidArgument, "new_filesystem", fmt.Errorf("retry_jitter_fraction must be in [0,1]"))
	}
	if c.RetryMaxAttempts == 0 {
		return nil, common.NewError(common.InvalidArgument, "new_filesystem", fmt.Errorf("retry_max_attempts must be positive"))
	}

	if c.LogWriter != nil {
		logger.SetOutput(c.LogWriter, c.LogJSON)
	}

	t := c.Transport
	if t == nil {
		ht, err := transport.NewHTTPTransport(nil)
		if err != nil {
			return nil, common.NewError(common.Unknown, "new_filesystem", err)
		}
		t = ht
	}

	clk := c.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	m := metrics.New(c.Metrics)

	retry := transport.NewController(transport.RetryConfig{
		MaxAttempts:       c.RetryMaxAttempts,
		InitialBackoff:    c.RetryInitialBackoff,
		BackoffMultiplier: c.RetryBackoffMultiplier,
		MaxBackoff:        c.RetryMaxBackoff,
		JitterFraction:    c.RetryJitterFraction,
	}, clk, m)

	ch := cache.New(c.CacheMaxBytes, c.ChunkSize, t, retry, m, c.RequestTimeout)

	fs := &Filesystem{
		cfg:         c,
		transport:   t,
		retry:       retry,
		cache:       ch,
		metrics:     m,
		descriptors: make(map[string]*descriptor),
	}

	if c.ReadAhead {
		ctx, cancel := context.WithCancel(context.Background())
		fs.workerCancel = cancel
		fs.worker = prefetch.NewWorker(c.PrefetchQueueCapacity, fs.prefetchFetch, m)
		fs.worker.Start(ctx)
	}

	return fs, nil
}

// prefetchFetch is the prefetch.FetchFunc the worker calls: it warms
// the cache via the same cache.GetChunk entry point a foreground read
// uses, so speculative fetches interlock with the single-flight
// coordinator, discarding the buffer it gets back.
func (fs *Filesystem) prefetchFetch(ctx context.Context, u string, idx chunk.Index) error {
	d := fs.descriptorFor(u)
	var total *uint64
	var validator *transport.Validator
	if d != nil {
		total = d.totalSize
		validator = fs.validatorFor(d)
	}
	_, err := fs.cache.GetChunk(ctx, u, idx, total, validator)
	return err
}

func (fs *Filesystem) descriptorFor(u string) *descriptor {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.descriptors[u]
}

// validatorFor builds the conditional-request precondition for d, or
// nil if conditional validation is disabled or d carries neither an
// ETag nor a Last-Modified value.
func (fs *Filesystem) validatorFor(d *descriptor) *transport.Validator {
	if !fs.cfg.ConditionalValidation || d == nil {
		return nil
	}
	if d.etag == nil && d.lastModified == nil {
		return nil
	}
	return &transport.Validator{ETag: d.etag, LastModified: d.lastModified}
}

// Open performs (or reuses) the probe for url and returns a File
// positioned at offset 0. mode must be "r" or "rb"; anything else
// fails with InvalidArgument.
func (fs *Filesystem) Open(ctx context.Context, rawURL string, mode string) (*File, error) {
	if mode != "r" && mode != "rb" {
		return nil, common.NewError(common.InvalidArgument, "open", fmt.Errorf("unsupported mode %q", mode))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, common.NewError(common.InvalidArgument, "open", fmt.Errorf("parsing url: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, common.NewError(common.UnsupportedProtocol, "open", fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	d, err := fs.probe(ctx, rawURL)
	if err != nil {
		return nil, classify("open", err)
	}
	if !d.supportsRange {
		return nil, common.NewError(common.UnsupportedProtocol, "open", fmt.Errorf("origin does not support range requests for %q", rawURL))
	}

	lookahead := uint(0)
	if fs.cfg.ReadAhead {
		lookahead = fs.cfg.ReadAheadChunks
	}

	f := &File{
		fs:         fs,
		url:        rawURL,
		descriptor: d,
		tracker:    prefetch.NewTracker(lookahead),
	}

	if d.totalSize != nil {
		logger.Infof("open: %s total_size=%d supports_range=%v", rawURL, *d.totalSize, d.supportsRange)
	} else {
		logger.Infof("open: %s total_size=unknown supports_range=%v", rawURL, d.supportsRange)
	}
	return f, nil
}

// probe discovers (or returns the previously discovered) descriptor for
// url. Concurrent Opens of the same URL may both race into the probe;
// whichever descriptor is stored first wins, and the loser discards its
// own (cache visibility across handles is monotonic; nothing requires
// that only one probe ever be in flight).
func (fs *Filesystem) probe(ctx context.Context, rawURL string) (*descriptor, error) {
	fs.mu.Lock()
	if d, ok := fs.descriptors[rawURL]; ok {
		fs.mu.Unlock()
		return d, nil
	}
	fs.mu.Unlock()

	result, err := transport.Do(fs.retry, "probe", func(attempt uint) (transport.ProbeResult, error) {
		return fs.transport.Probe(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}

	d := &descriptor{
		totalSize:     result.TotalSize,
		supportsRange: result.SupportsRange,
		etag:          result.ETag,
		lastModified:  result.LastModified,
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if existing, ok := fs.descriptors[rawURL]; ok {
		return existing, nil
	}
	fs.descriptors[rawURL] = d
	return d, nil
}

// Close stops the background prefetch worker, if one was started, and
// joins it. It does not close any File handle still open against this
// Filesystem; callers must Close those themselves.
func (fs *Filesystem) Close() error {
	if fs.worker != nil {
		fs.workerCancel()
		fs.worker.Close()
	}
	return nil
}
