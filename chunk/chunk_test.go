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

package chunk_test

import (
	"testing"

	"github.com/rhythmcache/pravaha/chunk"
	"github.com/stretchr/testify/assert"
)

func TestRange(t *testing.T) {
	const C = 1024

	first, last := chunk.Range(0, 5000, C)
	assert.Equal(t, chunk.Index(0), first)
	assert.Equal(t, chunk.Index(4), last)

	first, last = chunk.Range(100, 100, C)
	assert.Equal(t, chunk.Index(0), first)
	assert.Equal(t, chunk.Index(0), last)

	first, last = chunk.Range(1023, 2, C)
	assert.Equal(t, chunk.Index(0), first)
	assert.Equal(t, chunk.Index(1), last)
}

func TestBounds(t *testing.T) {
	start, end := chunk.Bounds(2, 1024)
	assert.Equal(t, uint64(2048), start)
	assert.Equal(t, uint64(3072), end)
}

func TestLen_FinalChunkIsShort(t *testing.T) {
	// 5000 bytes, chunk size 1024: chunks 0..3 are full, chunk 4 is 904 bytes.
	assert.Equal(t, uint64(1024), chunk.Len(0, 5000, 1024))
	assert.Equal(t, uint64(904), chunk.Len(4, 5000, 1024))
	assert.Equal(t, uint64(0), chunk.Len(5, 5000, 1024))
}

func TestCount(t *testing.T) {
	assert.Equal(t, uint64(5), chunk.Count(5000, 1024))
	assert.Equal(t, uint64(1), chunk.Count(0, 1024))
	assert.Equal(t, uint64(1), chunk.Count(1024, 1024))
	assert.Equal(t, uint64(2), chunk.Count(1025, 1024))
}

func TestBuffer_RefCounting(t *testing.T) {
	buf := chunk.NewBuffer([]byte("hello"))
	assert.Equal(t, int32(1), buf.RefCount())
	assert.Equal(t, uint64(5), buf.Size())

	buf.Acquire()
	assert.Equal(t, int32(2), buf.RefCount())

	assert.Equal(t, int32(1), buf.Release())
	assert.Equal(t, int32(0), buf.Release())
}
