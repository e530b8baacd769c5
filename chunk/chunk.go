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

// Package chunk implements the chunk-boundary arithmetic and the
// reference-counted, immutable-once-published buffer type that the
// chunk cache and file handle build on.
package chunk

import "sync/atomic"

// Index identifies a chunk within a resource: byte_offset / chunk size.
type Index uint64

// Range computes the inclusive chunk index interval [first, last]
// covering the byte range [offset, offset+length) for a given chunk
// size. length must be > 0.
func Range(offset uint64, length uint64, size uint64) (first, last Index) {
	first = Index(offset / size)
	last = Index((offset + length - 1) / size)
	return
}

// Bounds returns the half-open byte interval [start, end) covered by
// chunk index idx within a resource of the given chunk size. It does
// not clamp to any resource total size; callers intersect with the
// read request and with totalSize themselves.
func Bounds(idx Index, size uint64) (start, end uint64) {
	start = uint64(idx) * size
	end = start + size
	return
}

// Len returns the expected length of chunk idx of a resource of total
// size total and chunk size size — size for every chunk but the last,
// which may be shorter. total must be known (the caller handles the
// unknown-size case separately, since then every chunk's length is only
// known once fetched).
func Len(idx Index, total uint64, size uint64) uint64 {
	start, end := Bounds(idx, size)
	if end > total {
		end = total
	}
	if start > end {
		return 0
	}
	return end - start
}

// Count returns the number of chunks a resource of size total is split
// into, for the given chunk size. A zero-byte resource still has one
// (empty) chunk.
func Count(total uint64, size uint64) uint64 {
	if total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Buffer is an immutable-once-published byte region shared between the
// cache and any number of readers. It is created when a fetch
// completes and destroyed once every reference — the cache's and any
// reader's — has been released. Bytes must never be mutated after
// NewBuffer returns it.
type Buffer struct {
	bytes    []byte
	refCount int32
}

// NewBuffer wraps data (taking ownership of the slice — callers must not
// retain or mutate it afterward) in a Buffer with one reference, held by
// whoever calls NewBuffer.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{bytes: data, refCount: 1}
}

// Bytes returns the buffer's contents. The returned slice must not be
// mutated.
func (b *Buffer) Bytes() []byte {
	return b.bytes
}

// Len returns len(b.Bytes()).
func (b *Buffer) Len() int {
	return len(b.bytes)
}

// Size implements lru.ValueType: the number of bytes this buffer
// charges against the cache's byte budget.
func (b *Buffer) Size() uint64 {
	return uint64(len(b.bytes))
}

// Acquire adds a reference to the buffer. Every Acquire must be matched
// by a Release.
func (b *Buffer) Acquire() {
	atomic.AddInt32(&b.refCount, 1)
}

// Release drops a reference. Once every acquired reference (including
// the cache's own, if it still holds the entry) has been released, the
// buffer's backing bytes become eligible for garbage collection — there
// is nothing further for Release to do explicitly since Go is garbage
// collected, but callers that track outstanding references (tests) use
// the returned count to assert the buffer is no longer referenced. The
// chunk cache itself does not call Acquire or Release.
func (b *Buffer) Release() int32 {
	return atomic.AddInt32(&b.refCount, -1)
}

// RefCount returns the current reference count, for tests and
// diagnostics only.
func (b *Buffer) RefCount() int32 {
	return atomic.LoadInt32(&b.refCount)
}
