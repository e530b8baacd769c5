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

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmcache/pravaha/chunk"
	"github.com/rhythmcache/pravaha/clock"
	"github.com/rhythmcache/pravaha/internal/transport"
)

// countingTransport serves zero-filled bodies of the requested length,
// counting how many FetchRange calls it receives in total so tests can
// assert on single-flight dedup and cache-hit avoidance.
type countingTransport struct {
	calls int32
}

func (t *countingTransport) Probe(ctx context.Context, url string) (transport.ProbeResult, error) {
	return transport.ProbeResult{}, nil
}

func (t *countingTransport) FetchRange(ctx context.Context, url string, a, b uint64, v *transport.Validator, deadline time.Time) (transport.FetchResult, error) {
	atomic.AddInt32(&t.calls, 1)
	return transport.FetchResult{Bytes: make([]byte, b-a+1)}, nil
}

func newTestCache(tr transport.Transport) *Cache {
	retry := transport.NewController(transport.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2,
		MaxBackoff:        10 * time.Millisecond,
	}, clock.NewSimulatedClock(time.Unix(0, 0)), nil)
	return New(1<<20, 4096, tr, retry, nil, time.Second)
}

func TestGetChunk_MissThenHit(t *testing.T) {
	tr := &countingTransport{}
	c := newTestCache(tr)
	total := uint64(10000)

	buf, err := c.GetChunk(context.Background(), "http://example.test/f", chunk.Index(0), &total, nil)
	require.NoError(t, err)
	assert.Equal(t, 4096, buf.Len())
	assert.EqualValues(t, 1, atomic.LoadInt32(&tr.calls))

	buf2, err := c.GetChunk(context.Background(), "http://example.test/f", chunk.Index(0), &total, nil)
	require.NoError(t, err)
	assert.Same(t, buf, buf2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tr.calls), "second GetChunk should be served from cache")
}

func TestGetChunk_FinalChunkIsShort(t *testing.T) {
	tr := &countingTransport{}
	c := newTestCache(tr)
	total := uint64(4096*2 + 100)

	buf, err := c.GetChunk(context.Background(), "http://example.test/f", chunk.Index(2), &total, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, buf.Len())
}

func TestGetChunk_ConcurrentMissesCollapseToOneFetch(t *testing.T) {
	tr := &countingTransport{}
	c := newTestCache(tr)
	total := uint64(10000)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.GetChunk(context.Background(), "http://example.test/shared", chunk.Index(7), &total, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&tr.calls), "concurrent misses on the same chunk must dedup to one transport call")
}

func TestEvict_DropsAllChunksForURL(t *testing.T) {
	tr := &countingTransport{}
	c := newTestCache(tr)
	total := uint64(4096 * 3)

	for i := chunk.Index(0); i < 3; i++ {
		_, err := c.GetChunk(context.Background(), "http://example.test/f", i, &total, nil)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&tr.calls))

	c.Evict("http://example.test/f", 3)

	_, err := c.GetChunk(context.Background(), "http://example.test/f", chunk.Index(0), &total, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, atomic.LoadInt32(&tr.calls), "evicted chunk must be refetched")
}
