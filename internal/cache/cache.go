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

// Package cache implements the chunk cache: a byte-budgeted LRU index
// over fetched chunks, with concurrent fetches for the same
// (url, chunk index) collapsed into one transport call via
// golang.org/x/sync/singleflight.
package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rhythmcache/pravaha/chunk"
	"github.com/rhythmcache/pravaha/internal/lru"
	"github.com/rhythmcache/pravaha/internal/metrics"
	"github.com/rhythmcache/pravaha/internal/transport"
)

// Cache is the chunk cache. It owns a byte-budgeted LRU index of
// *chunk.Buffer values and a single-flight group that collapses
// concurrent misses on the same key into a single fetch.
type Cache struct {
	index      *lru.Cache
	group      singleflight.Group
	transport  transport.Transport
	retry      *transport.Controller
	metrics    *metrics.Metrics
	chunkSize  uint64
	reqTimeout time.Duration
}

// New builds a Cache over maxBytes of chunk data, fetching misses
// through t and wrapping each fetch with retry.
func New(maxBytes, chunkSize uint64, t transport.Transport, retry *transport.Controller, m *metrics.Metrics, reqTimeout time.Duration) *Cache {
	return &Cache{
		index:      lru.NewCache(maxBytes),
		transport:  t,
		retry:      retry,
		metrics:    m,
		chunkSize:  chunkSize,
		reqTimeout: reqTimeout,
	}
}

func key(url string, idx chunk.Index) string {
	return fmt.Sprintf("%s#%d", url, uint64(idx))
}

// GetChunk returns the chunk at idx for url, fetching and caching it on
// a miss. total, if known, bounds the final chunk's length; a nil total
// means the resource's size is learned from the fetch response itself.
func (c *Cache) GetChunk(ctx context.Context, url string, idx chunk.Index, total *uint64, validator *transport.Validator) (*chunk.Buffer, error) {
	k := key(url, idx)

	if v := c.index.LookUp(k); v != nil {
		c.metrics.CacheHit()
		return v.(*chunk.Buffer), nil
	}
	c.metrics.CacheMiss()

	result, err, _ := c.group.Do(k, func() (interface{}, error) {
		// Re-check: another goroutine's leader may have populated the
		// entry between our LookUp above and acquiring the
		// single-flight leadership for this key.
		if v := c.index.LookUp(k); v != nil {
			return v, nil
		}

		buf, err := c.fetch(ctx, url, idx, total, validator)
		if err != nil {
			return nil, err
		}
		c.index.Insert(k, buf)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*chunk.Buffer), nil
}

func (c *Cache) fetch(ctx context.Context, url string, idx chunk.Index, total *uint64, validator *transport.Validator) (*chunk.Buffer, error) {
	start, exclusiveEnd := chunk.Bounds(idx, c.chunkSize)
	end := exclusiveEnd - 1
	if total != nil && *total-1 < end {
		end = *total - 1
	}

	c.metrics.FetchStarted()
	defer c.metrics.FetchFinished()

	res, err := transport.Do(c.retry, "fetch_chunk", func(attempt uint) (transport.FetchResult, error) {
		deadline := time.Now().Add(c.reqTimeout)
		return c.transport.FetchRange(ctx, url, start, end, validator, deadline)
	})
	if err != nil {
		return nil, err
	}

	// A short response is only explainable as EOF when total size is
	// unknown; once total is known, the requested [start,end] was
	// already clamped to it above, so any shortfall is an
	// inconsistency the transport cannot account for.
	if total != nil {
		wantLen := end - start + 1
		if uint64(len(res.Bytes)) < wantLen {
			return nil, &transport.ClassifiedError{
				Classification: transport.ClassShortRead,
				Err:            fmt.Errorf("fetch_chunk: chunk %d: got %d bytes, wanted %d", idx, len(res.Bytes), wantLen),
			}
		}
	}

	c.metrics.BytesFetched(len(res.Bytes))
	return chunk.NewBuffer(res.Bytes), nil
}

// Evict drops the cached chunks 0 through count-1 for url; chunks of url
// at index count or above are left in place.
func (c *Cache) Evict(url string, count uint64) {
	for i := chunk.Index(0); uint64(i) < count; i++ {
		c.index.Erase(key(url, i))
	}
}

// TotalSize reports the cache's current byte usage.
func (c *Cache) TotalSize() uint64 { return c.index.TotalSize() }
