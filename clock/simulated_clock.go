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

package clock

import (
	"sync"
	"time"
)

// afterRequest holds the state for a pending After call on a SimulatedClock.
type afterRequest struct {
	targetTime time.Time
	ch         chan time.Time
}

// SimulatedClock is a Clock whose notion of time only advances when
// AdvanceTime or SetTime is called. The zero value is a clock initialized
// to the zero time; tests generally want NewSimulatedClock with an
// explicit start time instead.
type SimulatedClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*afterRequest
}

// NewSimulatedClock creates a clock initialized to startTime.
func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	return &SimulatedClock{now: startTime}
}

// Now returns the clock's current simulated time.
func (c *SimulatedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that fires once the simulated clock reaches
// c.Now()+d, as advanced by AdvanceTime or SetTime.
func (c *SimulatedClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	target := c.now.Add(d)
	if !target.After(c.now) {
		ch <- c.now
		return ch
	}

	c.pending = append(c.pending, &afterRequest{targetTime: target, ch: ch})
	return ch
}

// AdvanceTime moves the clock forward by d, firing any pending After
// channels whose target time has now been reached.
func (c *SimulatedClock) AdvanceTime(d time.Duration) {
	c.SetTime(c.Now().Add(d))
}

// SetTime sets the clock's current time and fires any pending After
// channels whose target time has been reached.
func (c *SimulatedClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.now = t

	var remaining []*afterRequest
	for _, r := range c.pending {
		if !r.targetTime.After(t) {
			r.ch <- t
		} else {
			remaining = append(remaining, r)
		}
	}
	c.pending = remaining
	c.mu.Unlock()
}
