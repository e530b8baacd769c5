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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rhythmcache/pravaha/internal/logger"
	"golang.org/x/net/http2"
)

// HTTPTransport is the concrete Transport built on
// net/http, with golang.org/x/net/http2 configured explicitly so HTTP/2
// range requests work over a plain *http.Transport without relying on
// the standard library's opportunistic upgrade.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds an HTTPTransport. A nil base uses a fresh
// *http.Transport with HTTP/2 support configured.
func NewHTTPTransport(base *http.Transport) (*HTTPTransport, error) {
	if base == nil {
		base = &http.Transport{}
	}
	if err := http2.ConfigureTransport(base); err != nil {
		return nil, fmt.Errorf("configuring http2: %w", err)
	}
	return &HTTPTransport{client: &http.Client{Transport: base}}, nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ClassifiedError{Classification: ClassPermanent, Err: fmt.Errorf("parsing url: %w", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ClassifiedError{Classification: ClassPermanent, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ClassifiedError{Classification: ClassPermanent, Err: err}
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// Probe issues a Range: bytes=0-0 GET (a HEAD would not reliably tell
// us whether range support is honored, only whether it is advertised)
// and inspects the response for a 206 or an Accept-Ranges: bytes header.
func (t *HTTPTransport) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	req, err := t.newRequest(ctx, rawURL)
	if err != nil {
		return ProbeResult{}, err
	}
	req.Header.Set("Range", "bytes=0-0")

	logger.Debugf("probe: %s request-id=%s", rawURL, req.Header.Get("X-Request-Id"))
	resp, err := t.client.Do(req)
	if err != nil {
		return ProbeResult{}, classifyNetError(err)
	}
	defer drainAndClose(resp.Body)

	result := ProbeResult{}
	if etag := resp.Header.Get("ETag"); etag != "" {
		result.ETag = &etag
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		result.LastModified = &lm
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.SupportsRange = true
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			_, _, total, err := parseContentRange(cr)
			if err != nil {
				return ProbeResult{}, &ClassifiedError{Classification: ClassProtocolViolation, Err: err}
			}
			result.TotalSize = total
		}
	case http.StatusOK:
		result.SupportsRange = resp.Header.Get("Accept-Ranges") == "bytes"
		if resp.ContentLength >= 0 {
			total := uint64(resp.ContentLength)
			result.TotalSize = &total
		}
	default:
		return ProbeResult{}, &ClassifiedError{
			Classification: ClassifyHTTPStatus(resp.StatusCode),
			Err:            fmt.Errorf("probe: unexpected status %s", resp.Status),
		}
	}

	return result, nil
}

// FetchRange issues the ranged GET for [a, b] and returns its body.
func (t *HTTPTransport) FetchRange(ctx context.Context, rawURL string, a, b uint64, validator *Validator, deadline time.Time) (FetchResult, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := t.newRequest(ctx, rawURL)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", a, b))
	if validator != nil {
		if validator.ETag != nil {
			req.Header.Set("If-Match", *validator.ETag)
		}
		if validator.LastModified != nil {
			req.Header.Set("If-Unmodified-Since", *validator.LastModified)
		}
	}

	logger.Tracef("fetch_range: %s [%d-%d] request-id=%s", rawURL, a, b, req.Header.Get("X-Request-Id"))
	resp, err := t.client.Do(req)
	if err != nil {
		return FetchResult{}, classifyNetError(err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// fall through to body read below
	case http.StatusRequestedRangeNotSatisfiable:
		return FetchResult{}, &ClassifiedError{
			Classification: ClassProtocolViolation,
			Err:            fmt.Errorf("fetch_range: 416 for in-range request [%d-%d]", a, b),
		}
	case http.StatusOK:
		return FetchResult{}, &ClassifiedError{
			Classification: ClassProtocolViolation,
			Err:            fmt.Errorf("fetch_range: got 200 OK for a ranged request"),
		}
	case http.StatusPreconditionFailed:
		return FetchResult{}, &ClassifiedError{
			Classification: ClassProtocolViolation,
			Err:            fmt.Errorf("fetch_range: 412 precondition failed"),
		}
	default:
		return FetchResult{}, &ClassifiedError{
			Classification: ClassifyHTTPStatus(resp.StatusCode),
			Err:            fmt.Errorf("fetch_range: unexpected status %s", resp.Status),
		}
	}

	cr := resp.Header.Get("Content-Range")
	if cr == "" {
		return FetchResult{}, &ClassifiedError{
			Classification: ClassProtocolViolation,
			Err:            fmt.Errorf("fetch_range: 206 response missing Content-Range"),
		}
	}
	gotA, gotB, total, err := parseContentRange(cr)
	if err != nil {
		return FetchResult{}, &ClassifiedError{Classification: ClassProtocolViolation, Err: err}
	}
	if gotA != a || (total != nil && gotB > b) {
		return FetchResult{}, &ClassifiedError{
			Classification: ClassProtocolViolation,
			Err:            fmt.Errorf("fetch_range: server returned range %d-%d, requested %d-%d", gotA, gotB, a, b),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &ClassifiedError{Classification: ClassTransient, Err: fmt.Errorf("reading body: %w", err)}
	}

	wantLen := b - a + 1
	terminal := uint64(len(body)) < wantLen
	return FetchResult{Bytes: body, ContentRangeTotal: total, TerminalChunk: terminal}, nil
}

// parseContentRange parses "bytes a-b/S" (S may be "*" for unknown
// total) per RFC 7233 §4.2.
func parseContentRange(header string) (a, b uint64, total *uint64, err error) {
	const prefix = "bytes "
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, nil, fmt.Errorf("malformed Content-Range %q", header)
	}
	rest := header[len(prefix):]

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return 0, 0, nil, fmt.Errorf("malformed Content-Range %q", header)
	}
	rangePart, totalPart := rest[:slash], rest[slash+1:]

	dash := strings.IndexByte(rangePart, '-')
	if dash < 0 {
		return 0, 0, nil, fmt.Errorf("malformed Content-Range %q", header)
	}
	a, err = strconv.ParseUint(rangePart[:dash], 10, 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}
	b, err = strconv.ParseUint(rangePart[dash+1:], 10, 64)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("malformed Content-Range %q: %w", header, err)
	}

	if totalPart != "*" {
		t, err := strconv.ParseUint(totalPart, 10, 64)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("malformed Content-Range %q: %w", header, err)
		}
		total = &t
	}
	return a, b, total, nil
}

// classifyNetError treats any transport-level failure (dial, TLS,
// timeout, connection reset) as transient: the retry controller is
// responsible for deciding whether to try again.
func classifyNetError(err error) *ClassifiedError {
	return &ClassifiedError{Classification: ClassTransient, Err: err}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
