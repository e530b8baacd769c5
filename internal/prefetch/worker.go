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
	"context"
	"sync"

	"github.com/rhythmcache/pravaha/chunk"
	"github.com/rhythmcache/pravaha/common"
	"github.com/rhythmcache/pravaha/internal/logger"
	"github.com/rhythmcache/pravaha/internal/metrics"
)

// Job is one speculative fetch submitted to a Worker.
type Job struct {
	URL     string
	Index   chunk.Index
	Tracker *Tracker
	Done    func(chunk.Index) // usually Tracker.MarkDone
}

// FetchFunc performs the actual warm-the-cache fetch; the worker
// discards its result, since a prefetch only warms the cache and never
// copies bytes out. Errors are swallowed — a speculative fetch is
// never observable to a reader.
type FetchFunc func(ctx context.Context, url string, idx chunk.Index) error

// Worker is the single background worker shared by a Filesystem. It
// consumes a bounded, non-blocking-to-submit queue; once full, Submit drops the
// oldest pending job rather than the newest, since freshness matters
// more than completeness for a speculative fetch.
type Worker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    common.Queue[Job]
	capacity int
	closed   bool

	fetch   FetchFunc
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// NewWorker builds a Worker with the given bounded queue capacity.
func NewWorker(capacity int, fetch FetchFunc, m *metrics.Metrics) *Worker {
	w := &Worker{
		queue:    common.NewLinkedListQueue[Job](),
		capacity: capacity,
		fetch:    fetch,
		metrics:  m,
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start spawns the worker's consume loop. ctx cancellation is honored
// by the FetchFunc the caller supplies, not by Start itself; Close is
// what stops the loop.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		for w.queue.IsEmpty() && !w.closed {
			w.cond.Wait()
		}
		if w.queue.IsEmpty() && w.closed {
			w.mu.Unlock()
			return
		}
		job := w.queue.Pop()
		w.mu.Unlock()

		if err := w.fetch(ctx, job.URL, job.Index); err != nil {
			logger.Debugf("prefetch: %s chunk %d: %v", job.URL, job.Index, err)
		}
		if job.Done != nil {
			job.Done(job.Index)
		}
	}
}

// Submit enqueues job without blocking. If the queue is already at
// capacity, the oldest pending job is dropped to make room.
func (w *Worker) Submit(job Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if w.queue.Len() >= w.capacity {
		dropped := w.queue.Pop()
		if dropped.Done != nil {
			dropped.Done(dropped.Index)
		}
		w.metrics.PrefetchDropped()
	}

	w.queue.Push(job)
	w.metrics.PrefetchSubmitted()
	w.cond.Signal()
}

// Close stops accepting submissions, lets the loop drain what is
// already queued (the owning Filesystem cancels the loop's context
// first, so drained fetches fail fast), and joins the loop goroutine.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cond.Broadcast()
	w.wg.Wait()
}

// CancelOwner drops every queued job belonging to tracker, leaving jobs
// belonging to other handles untouched. This is how File.Close scopes
// cancellation to its own outstanding prefetch work without retracting
// anything another handle may be waiting on. A job already popped off
// the queue and running is unaffected — it runs to completion, same as
// any fetch other handles may be waiting on via single-flight.
func (w *Worker) CancelOwner(tracker *Tracker) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.queue.Len()
	for i := 0; i < n; i++ {
		job := w.queue.Pop()
		if job.Tracker == tracker {
			if job.Done != nil {
				job.Done(job.Index)
			}
			continue
		}
		w.queue.Push(job)
	}
}
