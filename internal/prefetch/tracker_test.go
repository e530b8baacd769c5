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

package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmcache/pravaha/chunk"
)

func TestNewTracker_StartsIdleAndEnabled(t *testing.T) {
	tr := NewTracker(4)
	assert.Equal(t, StateIdle, tr.State())
}

func TestRecordRead_SingleReadNeverPredicts(t *testing.T) {
	tr := NewTracker(4)
	targets := tr.RecordRead(0, 100, 1024, 0, 0)
	assert.Empty(t, targets)
	assert.Equal(t, StateIdle, tr.State())
}

func TestRecordRead_TwoSequentialReadsStillProbing(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordRead(0, 100, 1024, 0, 0)
	targets := tr.RecordRead(100, 200, 1024, 0, 0)
	assert.Empty(t, targets, "a single sequential step only earns Probing, not Active")
	assert.Equal(t, StateProbing, tr.State())
}

func TestRecordRead_ThreeSequentialReadsGoActiveAndPredict(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordRead(0, 100, 1024, 0, 0)
	tr.RecordRead(100, 200, 1024, 0, 0)
	targets := tr.RecordRead(200, 300, 1024, 0, 0)

	require.NotEmpty(t, targets)
	assert.Equal(t, StateActive, tr.State())
	assert.Contains(t, targets, chunk.Index(1))
}

func TestRecordRead_RespectsBoundCount(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordRead(0, 100, 1024, 2, 0)
	tr.RecordRead(100, 200, 1024, 2, 0)
	targets := tr.RecordRead(200, 300, 1024, 2, 3) // only chunks 0,1,2 exist

	for _, idx := range targets {
		assert.Less(t, uint64(idx), uint64(3))
	}
}

func TestRecordRead_InFlightChunkNotResubmitted(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordRead(0, 100, 1024, 0, 0)
	tr.RecordRead(100, 200, 1024, 0, 0)
	first := tr.RecordRead(200, 300, 1024, 0, 0)
	require.NotEmpty(t, first)
	for _, idx := range first {
		tr.MarkInFlight(idx)
	}

	second := tr.RecordRead(300, 400, 1024, 0, 0)
	for _, idx := range second {
		assert.NotContains(t, first, idx)
	}
}

func TestRecordRead_NonSequentialResetsRun(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordRead(0, 100, 1024, 0, 0)
	tr.RecordRead(100, 200, 1024, 0, 0)
	tr.RecordRead(200, 300, 1024, 0, 0) // Active now

	targets := tr.RecordRead(5000, 5100, 1024, 4, 0) // a seek-like jump
	assert.Empty(t, targets)
	assert.Equal(t, StateIdle, tr.State())
}

func TestDisableAfterThreeStrikesThenReenableAfterTwoSequential(t *testing.T) {
	tr := NewTracker(4)

	// three non-sequential reads in a row strike the tracker disabled.
	tr.RecordRead(0, 10, 1024, 0, 0)
	tr.RecordRead(500, 510, 1024, 0, 0)
	tr.RecordRead(900, 910, 1024, 0, 0)
	assert.Equal(t, StateDisabled, tr.State())

	// a single sequential read is not enough to re-enable.
	targets := tr.RecordRead(910, 920, 1024, 0, 0)
	assert.Empty(t, targets)
	assert.Equal(t, StateDisabled, tr.State())

	// a second consecutive sequential read re-enables it.
	tr.RecordRead(920, 930, 1024, 0, 0)
	assert.NotEqual(t, StateDisabled, tr.State())
}

func TestRecordSeek_DisablesAndResetsRun(t *testing.T) {
	tr := NewTracker(4)
	tr.RecordRead(0, 100, 1024, 0, 0)
	tr.RecordRead(100, 200, 1024, 0, 0)
	tr.RecordRead(200, 300, 1024, 0, 0)
	require.Equal(t, StateActive, tr.State())

	tr.RecordSeek()
	assert.Equal(t, StateDisabled, tr.State())

	targets := tr.RecordRead(9000, 9100, 1024, 8, 0)
	assert.Empty(t, targets)
}

func TestMarkDone_AllowsResubmission(t *testing.T) {
	tr := NewTracker(4)
	tr.MarkInFlight(chunk.Index(1))
	tr.MarkDone(chunk.Index(1))

	tr.RecordRead(0, 100, 1024, 0, 0)
	tr.RecordRead(100, 200, 1024, 0, 0)
	targets := tr.RecordRead(200, 300, 1024, 0, 0)
	assert.Contains(t, targets, chunk.Index(1))
}
