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

package pravaha

import (
	"context"
	"io"
	"sync"

	"github.com/rhythmcache/pravaha/chunk"
	"github.com/rhythmcache/pravaha/common"
	"github.com/rhythmcache/pravaha/internal/logger"
	"github.com/rhythmcache/pravaha/internal/prefetch"
)

// File is the per-open, single-owner stateful view: positional read,
// seek, tell, size, eof, close. It holds a non-owning back-reference
// to the Filesystem that vended it (a handle must not outlive its
// Filesystem). A File must not be used concurrently from more than one
// goroutine; the internal mutex below guards only against Close racing
// a concurrent Read/Seek from a misbehaving caller, not against that
// requirement.
type File struct {
	fs         *Filesystem
	url        string
	descriptor *descriptor
	tracker    *prefetch.Tracker

	mu       sync.Mutex
	position uint64
	eofFlag  bool
	closed   bool

	// discoveredEnd is set once a short chunk reveals the true end of
	// an unknown-size resource. Nil while the resource's end is still
	// unknown.
	discoveredEnd *uint64

	// ownsFS is set for a File returned by the package-level Open
	// convenience function, whose private Filesystem has no other
	// caller able to Close it.
	ownsFS bool
}

// effectiveEnd returns the byte offset past which reads must return
// EOF: the descriptor's known total size if the origin disclosed one,
// otherwise whatever boundary this handle has itself discovered by
// observing a short chunk.
func (f *File) effectiveEnd() *uint64 {
	if f.descriptor.totalSize != nil {
		return f.descriptor.totalSize
	}
	return f.discoveredEnd
}

// Read implements io.Reader: it fills p with bytes starting at the
// handle's current position, advances position by the number of bytes
// copied, and returns io.EOF once the resource (or, for an unknown-size
// resource, the point the origin's stream ended) has been reached. The
// cabi package's read export flattens this back to the C convention of
// 0-means-EOF with no distinguished error.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, common.NewError(common.FileClosed, "read", nil)
	}
	position := f.position
	f.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	copied, last, boundCount, err := f.readRange(position, p)
	if err != nil {
		return 0, classify("read", err)
	}

	oldPosition := position
	newPosition := position + copied

	f.mu.Lock()
	f.position = newPosition
	f.eofFlag = copied == 0
	f.mu.Unlock()

	if f.fs.cfg.ReadAhead && copied > 0 {
		f.notifyPrefetcher(oldPosition, newPosition, f.fs.cfg.ChunkSize, last, boundCount)
	}

	if copied == 0 {
		return 0, io.EOF
	}
	return int(copied), nil
}

// ReadAt fills p with bytes starting at off without disturbing the
// handle's current position, EOF flag, or the prefetcher's sequential
// trace — a stateless positional read, matching io.ReaderAt's
// contract: it returns exactly len(p) bytes with a nil error, or fewer
// bytes with a non-nil error — io.EOF when the resource ends before p is
// filled (including when off is at or past the end), never a short,
// silent read.
func (f *File) ReadAt(p []byte, off uint64) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, common.NewError(common.FileClosed, "read_at", nil)
	}
	f.mu.Unlock()

	copied, _, _, err := f.readRange(off, p)
	if err != nil {
		return int(copied), classify("read_at", err)
	}
	if copied < uint64(len(p)) {
		return int(copied), io.EOF
	}
	return int(copied), nil
}

// readRange fills p with bytes starting at position, clamped to the
// resource's known end if any, via the chunk cache. It returns the
// number of bytes copied, the last chunk index touched (for the
// prefetcher), and the resource's total chunk count if known (0 if
// not). It does not mutate any File field except discoveredEnd, which
// it may set the first time an unknown-size resource's end is
// observed.
func (f *File) readRange(position uint64, p []byte) (copied uint64, last chunk.Index, boundCount uint64, err error) {
	end := f.effectiveEnd()
	if end != nil && position >= *end {
		return 0, 0, 0, nil
	}

	effectiveLen := uint64(len(p))
	if end != nil {
		if remaining := *end - position; effectiveLen > remaining {
			effectiveLen = remaining
		}
	}
	if effectiveLen == 0 {
		return 0, 0, 0, nil
	}

	chunkSize := f.fs.cfg.ChunkSize
	first, lastIdx := chunk.Range(position, effectiveLen, chunkSize)
	last = lastIdx

	if f.descriptor.totalSize != nil {
		boundCount = chunk.Count(*f.descriptor.totalSize, chunkSize)
	}
	validator := f.fs.validatorFor(f.descriptor)

	for i := first; i <= lastIdx; i++ {
		buf, ferr := f.fs.cache.GetChunk(context.Background(), f.url, i, f.descriptor.totalSize, validator)
		if ferr != nil {
			if copied > 0 {
				break
			}
			return 0, last, boundCount, ferr
		}

		chunkBase := uint64(i) * chunkSize
		localStart := uint64(0)
		if i == first {
			localStart = position - chunkBase
		}
		wantEnd := chunkSize
		if i == lastIdx {
			if e := position + effectiveLen - chunkBase; e < wantEnd {
				wantEnd = e
			}
		}

		bufLen := uint64(buf.Len())
		localEnd := wantEnd
		if localEnd > bufLen {
			localEnd = bufLen
		}
		if localEnd > localStart {
			n := localEnd - localStart
			copy(p[copied:copied+n], buf.Bytes()[localStart:localEnd])
			copied += n
		}

		if localEnd < wantEnd {
			// This chunk came back shorter than the read needed. For a
			// known-size resource the cache already turned this into an
			// IO error before we got here; for an unknown-size resource
			// this is the EOF signal.
			if f.descriptor.totalSize == nil {
				discovered := position + copied
				f.mu.Lock()
				f.discoveredEnd = &discovered
				f.mu.Unlock()
			}
			break
		}
	}

	return copied, last, boundCount, nil
}

// notifyPrefetcher records the just-completed read with the handle's
// Tracker and submits whatever chunk indices it predicts to the shared
// worker.
func (f *File) notifyPrefetcher(start, end uint64, chunkSize uint64, currentChunk chunk.Index, boundCount uint64) {
	targets := f.tracker.RecordRead(start, end, chunkSize, currentChunk, boundCount)
	if len(targets) == 0 {
		return
	}

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}

	for _, idx := range targets {
		f.tracker.MarkInFlight(idx)
		f.fs.worker.Submit(prefetch.Job{
			URL:     f.url,
			Index:   idx,
			Tracker: f.tracker,
			Done:    f.tracker.MarkDone,
		})
	}
}

// Seek repositions the handle: succeeds on any open handle (a closed
// one fails with FileClosed), clears the latched EOF flag, and breaks
// the prefetcher's sequential-access trace. Seeking past the end of the resource is allowed; the next
// Read simply returns (0, io.EOF).
func (f *File) Seek(pos uint64) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return common.NewError(common.FileClosed, "seek", nil)
	}
	f.position = pos
	f.eofFlag = false
	f.mu.Unlock()

	if f.fs.cfg.ReadAhead {
		f.tracker.RecordSeek()
	}
	return nil
}

// Tell returns the handle's current position.
func (f *File) Tell() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Size returns the resource's total size and true, or (0, false) if the
// origin never disclosed one.
func (f *File) Size() (uint64, bool) {
	if f.descriptor.totalSize == nil {
		return 0, false
	}
	return *f.descriptor.totalSize, true
}

// EOF reports the handle's latched end-of-file flag.
func (f *File) EOF() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eofFlag
}

// Close marks the handle closed and cancels its own outstanding
// prefetch submissions without disturbing in-flight fetches other
// handles may be waiting on. Close is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	if f.fs.worker != nil {
		f.fs.worker.CancelOwner(f.tracker)
	}
	logger.Debugf("close: %s", f.url)

	if f.ownsFS {
		return f.fs.Close()
	}
	return nil
}
