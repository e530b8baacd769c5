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

package pravaha_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmcache/pravaha"
	"github.com/rhythmcache/pravaha/cfg"
)

// waitForRequestCount polls until origin has served at least want requests,
// or fails the test after a short deadline — used where a request is
// expected to arrive asynchronously via the background prefetch worker.
func waitForRequestCount(t *testing.T, origin *rangeOrigin, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if origin.RequestCount() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for request count >= %d, got %d", want, origin.RequestCount())
}

func TestPrefetcher_SequentialReadsWarmNextChunk(t *testing.T) {
	body := testBody(4 * 1024)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem(cfg.WithChunkSize(1024), cfg.WithReadAheadChunks(4))
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 100)
	for i := 0; i < 4; i++ {
		n, err := f.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
	}

	// probe + chunk 0 fetched on demand + chunk 1 warmed speculatively
	// once the run of sequential reads goes Active.
	waitForRequestCount(t, origin, 3)
}

func TestPrefetcher_RandomAccessStaysBoundedPerChunk(t *testing.T) {
	body := testBody(5000)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem(cfg.WithChunkSize(1000))
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 10)
	for _, off := range []uint64{0, 4000, 50, 3500, 80} {
		require.NoError(t, f.Seek(off))
		_, err := f.Read(buf)
		require.NoError(t, err)
	}

	time.Sleep(50 * time.Millisecond) // let any stray prefetch settle
	// probe + at most one fetch per distinct chunk touched (0, 4, 0, 3, 0)
	// touches chunks {0,3,4}, so at most 1(probe)+3 = 4; random access
	// never earns two sequential reads in a row here, so the
	// prefetcher never goes Active and issues no extra warms.
	assert.LessOrEqual(t, int(origin.RequestCount()), 4)
}

func TestFile_CloseWithQueuedPrefetchDoesNotFailOrBlock(t *testing.T) {
	body := testBody(8 * 1024)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem(cfg.WithChunkSize(1024), cfg.WithReadAheadChunks(4))
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)

	buf := make([]byte, 100)
	for i := 0; i < 3; i++ {
		_, err := f.Read(buf)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	// Closing immediately must not panic or block, whether or not the
	// speculative fetch it queued had already started.
	time.Sleep(20 * time.Millisecond)
}

func TestOpen_ReusesProbeAcrossHandles(t *testing.T) {
	body := testBody(1000)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem()
	require.NoError(t, err)
	defer fs.Close()

	f1, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f1.Close()

	f2, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f2.Close()

	size1, ok1 := f1.Size()
	size2, ok2 := f2.Size()
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, size1, size2)
	assert.EqualValues(t, 1, origin.RequestCount(), "second Open of the same URL must reuse the cached probe")
}

func TestReadAheadDisabled_DoesNotAlterBytes(t *testing.T) {
	body := testBody(5000)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem(cfg.WithChunkSize(1024), cfg.WithReadAhead(false))
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f.Close()

	got := make([]byte, 5000)
	n := 0
	for n < len(got) {
		m, err := f.Read(got[n:])
		if err != nil {
			break
		}
		n += m
	}
	assert.Equal(t, body, got[:n])
}

func TestReadAt_DoesNotDisturbPositionOrPrefetch(t *testing.T) {
	body := testBody(5000)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem(cfg.WithChunkSize(1024))
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Seek(17))

	buf := make([]byte, 100)
	n, err := f.ReadAt(buf, 4000)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, body[4000:4100], buf)

	assert.Equal(t, uint64(17), f.Tell(), "ReadAt must not move the handle's position")
	assert.False(t, f.EOF())
}

func TestReadAt_PastEndReturnsEOF(t *testing.T) {
	body := testBody(100)
	origin := newRangeOrigin(t, body)

	fs, err := pravaha.NewFilesystem(cfg.WithChunkSize(1024))
	require.NoError(t, err)
	defer fs.Close()

	f, err := fs.Open(context.Background(), origin.URL(), "rb")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 10)
	n, err := f.ReadAt(buf, 100)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPackageLevelOpen_ClosesItsOwnFilesystem(t *testing.T) {
	body := testBody(1000)
	origin := newRangeOrigin(t, body)

	f, err := pravaha.Open(context.Background(), origin.URL(), "rb", cfg.WithChunkSize(256))
	require.NoError(t, err)

	got := make([]byte, 1000)
	n, err := io.ReadFull(f, got)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	assert.Equal(t, body, got)

	require.NoError(t, f.Close())
}
