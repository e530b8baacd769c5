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

// Package transport defines the interface the core consumes to talk to
// an HTTP(S) origin and the retry controller that wraps it.
// The concrete net/http-based implementation lives in
// http_transport.go; the core only ever depends on the Transport
// interface.
package transport

import (
	"context"
	"time"
)

// ProbeResult is the outcome of the one-shot discovery exchange a
// Filesystem performs the first time it sees a URL.
type ProbeResult struct {
	// TotalSize is the resource's length in bytes, if the origin
	// disclosed one.
	TotalSize *uint64
	// SupportsRange reports whether the origin accepts byte-range
	// requests for this resource.
	SupportsRange bool
	// ETag and LastModified, if present, support optional conditional
	// validation; both are opaque to the core.
	ETag         *string
	LastModified *string
}

// Validator carries the conditional-request precondition optionally
// attached to subsequent fetches once a probe has discovered an ETag or
// Last-Modified value (cfg.WithConditionalValidation).
type Validator struct {
	ETag         *string
	LastModified *string
}

// FetchResult is the outcome of a single ranged GET.
type FetchResult struct {
	// Bytes holds the body returned for the requested interval. Its
	// length is <= b-a+1; shorter means the origin terminated the
	// stream early.
	Bytes []byte
	// ContentRangeTotal is the resource's total size as disclosed by
	// this response's Content-Range header, if any.
	ContentRangeTotal *uint64
	// TerminalChunk reports whether the origin's response indicates
	// there is nothing more to read past Bytes (used for unknown-size
	// resources, where a short read is the only EOF signal).
	TerminalChunk bool
}

// Transport issues the two requests the core ever needs: the discovery
// probe and a single ranged GET. A concrete Transport touches the
// network; the core makes no assumption about its connection pooling
// beyond "calls may proceed concurrently".
type Transport interface {
	// Probe discovers total size and range support for url.
	Probe(ctx context.Context, url string) (ProbeResult, error)

	// FetchRange requests the inclusive byte interval [a, b] of url,
	// attaching validator (if non-nil) as a conditional-request
	// precondition, and failing once deadline passes.
	FetchRange(ctx context.Context, url string, a, b uint64, validator *Validator, deadline time.Time) (FetchResult, error)
}
