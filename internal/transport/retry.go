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

package transport

import (
	"math/rand"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rhythmcache/pravaha/clock"
	"github.com/rhythmcache/pravaha/internal/logger"
	"github.com/rhythmcache/pravaha/internal/metrics"
)

// RetryConfig holds the parameters of the retry schedule.
type RetryConfig struct {
	MaxAttempts       uint
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	JitterFraction    float64
}

// Controller wraps transport calls with capped exponential backoff on
// Transient failures. It is stateless across calls other
// than its configuration — each Do call gets its own attempt counter
// and its own jpillora/backoff.Backoff, so concurrent callers never
// share or corrupt retry state.
type Controller struct {
	cfg     RetryConfig
	clk     clock.Clock
	metrics *metrics.Metrics
	// rand is isolated per-Controller so tests can make jitter
	// deterministic without touching the global math/rand source.
	rand *rand.Rand
}

// NewController builds a retry controller. clk drives backoff sleeps,
// so tests can use clock.NewSimulatedClock to avoid real waits.
func NewController(cfg RetryConfig, clk clock.Clock, m *metrics.Metrics) *Controller {
	return &Controller{
		cfg:     cfg,
		clk:     clk,
		metrics: m,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// delay computes the backoff duration before attempt k (0-indexed):
// min(max_backoff, initial_backoff * multiplier^k), via jpillora/backoff's
// stateless ForAttempt, then a multiplicative jitter factor drawn from
// [1-f, 1+f] on top (the library's built-in Jitter flag draws
// uniformly from [0, duration] instead, which is not this schedule).
func (c *Controller) delay(k uint) time.Duration {
	b := &backoff.Backoff{
		Min:    c.cfg.InitialBackoff,
		Max:    c.cfg.MaxBackoff,
		Factor: c.cfg.BackoffMultiplier,
	}
	base := b.ForAttempt(float64(k))

	if c.cfg.JitterFraction <= 0 {
		return base
	}
	lo := 1 - c.cfg.JitterFraction
	spread := 2 * c.cfg.JitterFraction
	factor := lo + c.rand.Float64()*spread
	return time.Duration(float64(base) * factor)
}

// Do invokes fn, retrying on *ClassifiedError with Classification ==
// ClassTransient until either it succeeds or cfg.MaxAttempts is
// reached. Do takes no context and checks none between attempts. A non-transient *ClassifiedError, or any
// other error, is returned immediately without retry. On attempts
// exhaustion the last transient error is returned.
func Do[T any](c *Controller, op string, fn func(attempt uint) (T, error)) (T, error) {
	var lastErr error
	for attempt := uint(0); ; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}

		classified, ok := err.(*ClassifiedError)
		if !ok || classified.Classification != ClassTransient {
			var zero T
			return zero, err
		}

		lastErr = err
		if attempt+1 >= c.cfg.MaxAttempts {
			logger.Warnf("%s: attempts exhausted after %d tries: %v", op, attempt+1, lastErr)
			var zero T
			return zero, lastErr
		}

		c.metrics.RetryAttempted()
		d := c.delay(attempt)
		logger.Debugf("%s: transient error on attempt %d, retrying in %s: %v", op, attempt, d, err)
		if d > 0 {
			<-c.clk.After(d)
		}
	}
}
