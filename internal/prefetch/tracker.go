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

// Package prefetch implements the per-handle sequential-access
// predictor and the filesystem-wide background worker that warms the
// chunk cache ahead of a sequential reader. The predictor is a pair of
// rolling counters: three consecutive non-sequential reads disable
// prediction, two consecutive sequential reads re-enable it.
package prefetch

import (
	"sync"

	"github.com/rhythmcache/pravaha/chunk"
)

// State names the four states of a Tracker's predictor, for
// diagnostics; Tracker itself is driven by counters rather than an
// explicit state field.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateActive
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

const disableAfterStrikes = 3
const reenableAfterStreak = 2

// Tracker holds one file handle's prefetch prediction state: the last
// read's end offset, the current sequential run length, the lookahead
// window, the set of in-flight chunk indices, and the rolling
// strike/streak counters that disable and re-enable prediction.
type Tracker struct {
	mu sync.Mutex

	lastReadEnd   *uint64
	sequentialRun uint
	enabled       bool
	lookahead     uint
	maxLookahead  uint

	strikes uint // consecutive non-sequential reads while enabled
	streak  uint // consecutive sequential reads while disabled

	inFlight map[chunk.Index]struct{}
}

// NewTracker builds a Tracker. maxLookahead caps the lookahead window;
// a handle starts enabled with lookahead 1.
func NewTracker(maxLookahead uint) *Tracker {
	if maxLookahead == 0 {
		maxLookahead = 1
	}
	return &Tracker{
		enabled:      true,
		lookahead:    1,
		maxLookahead: maxLookahead,
		inFlight:     make(map[chunk.Index]struct{}),
	}
}

// State reports the tracker's current named state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state()
}

func (t *Tracker) state() State {
	switch {
	case !t.enabled:
		return StateDisabled
	case t.sequentialRun == 0:
		return StateIdle
	case t.sequentialRun == 1:
		return StateProbing
	default:
		return StateActive
	}
}

// RecordSeek disables prediction immediately and resets the run state
// so a subsequent sequential run must re-earn Active via the normal
// re-enable streak.
func (t *Tracker) RecordSeek() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
	t.sequentialRun = 0
	t.lookahead = 1
	t.lastReadEnd = nil
	t.strikes = 0
	t.streak = 0
}

// RecordRead updates the tracker with a read covering the half-open
// byte interval [start, end) and returns the chunk indices the caller
// should submit for prefetch, counting ahead from currentChunk
// (boundCount is the chunk count of the whole resource, or 0 if
// unknown — in which case no upper bound is applied beyond lookahead).
// chunkSize is accepted but not used. An empty result means nothing to prefetch this
// call, either because the state is not Active or every candidate chunk
// is already in flight.
func (t *Tracker) RecordRead(start, end uint64, chunkSize uint64, currentChunk chunk.Index, boundCount uint64) []chunk.Index {
	t.mu.Lock()
	defer t.mu.Unlock()

	sequential := t.lastReadEnd != nil && *t.lastReadEnd == start
	t.lastReadEnd = &end

	if sequential {
		t.sequentialRun++
		t.strikes = 0
		if t.enabled {
			if t.lookahead < t.maxLookahead {
				t.lookahead++
			}
		} else {
			t.streak++
			if t.streak >= reenableAfterStreak {
				t.enabled = true
				t.streak = 0
				t.lookahead = 1
			}
		}
	} else {
		t.sequentialRun = 0
		t.lookahead = 1
		t.streak = 0
		if t.enabled {
			t.strikes++
			if t.strikes >= disableAfterStrikes {
				t.enabled = false
				t.strikes = 0
			}
		}
	}

	if !t.enabled || t.sequentialRun < 2 {
		return nil
	}

	var targets []chunk.Index
	for i := uint(1); i <= t.lookahead; i++ {
		idx := currentChunk + chunk.Index(i)
		if boundCount > 0 && uint64(idx) >= boundCount {
			break
		}
		if _, inFlight := t.inFlight[idx]; inFlight {
			continue
		}
		targets = append(targets, idx)
	}
	return targets
}

// MarkInFlight records idx as submitted, so a subsequent RecordRead
// call does not resubmit it before the worker finishes.
func (t *Tracker) MarkInFlight(idx chunk.Index) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight[idx] = struct{}{}
}

// MarkDone clears idx's in-flight marker once the worker finishes
// fetching it (or drops it), so it becomes eligible for resubmission if
// it was never actually cached (e.g. the fetch failed).
func (t *Tracker) MarkDone(idx chunk.Index) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, idx)
}
