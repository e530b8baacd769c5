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

// Classification is the retry controller's view of why a transport call
// failed: whether it is worth retrying, and if not, what
// kind of terminal error it should surface as.
type Classification int

const (
	// ClassTransient covers network timeouts, connection resets, and
	// 5xx (except 501), 408, 429 and 503 responses. Retried.
	ClassTransient Classification = iota
	// ClassPermanent covers 4xx other than 408/429, scheme errors, and
	// URL parse errors. Not retried; surfaces as Network once wrapped
	// (the origin answered, just not favorably — there is nothing a
	// caller can do but treat it the way any other non-retryable
	// network-layer failure is treated).
	ClassPermanent
	// ClassProtocolViolation covers an RFC 7233 contract violation: a
	// 200 in answer to a ranged GET, a missing or mismatched
	// Content-Range, or an in-range 416. Not retried; surfaces as
	// Protocol.
	ClassProtocolViolation
	// ClassShortRead covers a fetch that returned fewer bytes than its
	// requested range when the resource's total size is known, so the
	// shortfall cannot be explained as EOF. Not retried;
	// surfaces as IO. Used only by the chunk cache, which is the layer
	// that knows whether total size is known — the transport itself
	// reports TerminalChunk and lets the caller decide.
	ClassShortRead
)

func (c Classification) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassProtocolViolation:
		return "protocol-violation"
	case ClassShortRead:
		return "short-read"
	default:
		return "unknown"
	}
}

// ClassifiedError is the error type every Transport method returns on
// failure; the retry controller inspects Classification and nothing
// else.
type ClassifiedError struct {
	Classification Classification
	Err            error
}

func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// ClassifyHTTPStatus maps a response status code to a Classification.
// It does not handle 416 or 200, which
// need request context (the requested range) to classify correctly —
// callers check those before falling back to ClassifyHTTPStatus.
func ClassifyHTTPStatus(status int) Classification {
	switch status {
	case 408, 429, 503:
		return ClassTransient
	case 501:
		return ClassPermanent
	}

	switch {
	case status >= 500 && status < 600:
		return ClassTransient
	case status >= 400 && status < 500:
		return ClassPermanent
	default:
		return ClassPermanent
	}
}
