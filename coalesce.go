package courier

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// coalesceTransport collapses concurrent identical GET requests into a
// single upstream call. The shared response body is buffered so every waiter
// gets an independent reader.
//
// Only GET and HEAD are coalesced; other methods are not idempotent and pass
// straight through.
type coalesceTransport struct {
	base  http.RoundTripper
	cfg   *internalConfig
	group singleflight.Group
}

// newCoalesceTransport wraps base with the coalescing layer, or returns base
// unchanged when coalescing is not enabled.
func newCoalesceTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if !cfg.coalesceGETs {
		return base
	}
	return &coalesceTransport{base: base, cfg: cfg}
}

// coalescedResult is the shared outcome of one upstream exchange.
type coalescedResult struct {
	resp *http.Response
	body []byte
}

// RoundTrip implements http.RoundTripper.
func (t *coalesceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.base.RoundTrip(req)
	}

	key := coalesceKey(req.Method, req.URL.String())

	ctx := req.Context()
	v, err, shared := t.group.Do(key, func() (interface{}, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		// Buffer the body once; each waiter receives its own reader.
		var body []byte
		if resp.Body != nil {
			body, err = io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
		}
		return &coalescedResult{resp: resp, body: body}, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		t.cfg.metrics.recordCoalescedRequest(ctx, t.cfg.baseAttributes())
	}

	result := v.(*coalescedResult)
	return cloneCoalescedResponse(result), nil
}

// cloneCoalescedResponse builds a per-caller response over the shared body.
func cloneCoalescedResponse(result *coalescedResult) *http.Response {
	resp := *result.resp
	resp.Header = result.resp.Header.Clone()
	resp.Body = io.NopCloser(bytes.NewReader(result.body))
	return &resp
}

// coalesceKey builds the deduplication key from the method and the URL with
// its query parameters sorted, so equivalent URLs coalesce regardless of
// parameter order.
func coalesceKey(method, rawURL string) string {
	normalized := rawURL
	if idx := strings.IndexByte(rawURL, '?'); idx >= 0 {
		params := strings.Split(rawURL[idx+1:], "&")
		sort.Strings(params)
		normalized = rawURL[:idx] + "?" + strings.Join(params, "&")
	}

	sum := sha256.Sum256([]byte(method + "|" + normalized))
	return hex.EncodeToString(sum[:])
}
