package courier

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

// RequestDescriptor is the pre-dispatch representation of an outbound HTTP
// call. It is assembled from a declared Endpoint and the per-call arguments,
// then handed to the interceptor chain before being converted into an
// *http.Request.
//
// A descriptor is mutable while it flows through request interceptors and
// must be treated as immutable once dispatched. Header and Query are
// multi-valued: the same key may carry several entries.
type RequestDescriptor struct {
	// Method is the HTTP verb (GET, POST, ...).
	Method string

	// URL is the target URL. Request interceptors may rewrite it (for
	// example BaseURL prefixing) but must never drop it.
	URL string

	// Header holds the outgoing headers. Duplicate names are permitted;
	// stages that layer headers append rather than overwrite.
	Header http.Header

	// Query holds the query parameters to merge into the URL at dispatch.
	Query url.Values

	// Body is the opaque request payload. Encoding is not the descriptor's
	// concern: interceptors (JSONBody) or the dispatch step handle it.
	Body any
}

// NewRequestDescriptor creates a descriptor with initialized header and
// query maps.
func NewRequestDescriptor(method, rawURL string) *RequestDescriptor {
	return &RequestDescriptor{
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
		Query:  make(url.Values),
	}
}

// Clone returns a deep copy of the descriptor. The body is shared, not
// copied, since it is opaque.
func (d *RequestDescriptor) Clone() *RequestDescriptor {
	clone := &RequestDescriptor{
		Method: d.Method,
		URL:    d.URL,
		Header: d.Header.Clone(),
		Query:  make(url.Values, len(d.Query)),
		Body:   d.Body,
	}
	if clone.Header == nil {
		clone.Header = make(http.Header)
	}
	for k, vs := range d.Query {
		clone.Query[k] = append([]string(nil), vs...)
	}
	return clone
}

// httpRequest converts the descriptor into an *http.Request, merging the
// query multi-map into the URL and encoding the body.
//
// Body encoding rules mirror the fluent-builder convention:
//   - nil: no body
//   - io.Reader: passthrough
//   - []byte: raw bytes (application/octet-stream)
//   - string: raw text (text/plain)
//   - url.Values: form encoded (application/x-www-form-urlencoded)
//   - anything else: JSON (application/json)
//
// A Content-Type already present on the descriptor always wins.
func (d *RequestDescriptor) httpRequest(ctx context.Context) (*http.Request, error) {
	target := d.URL
	if len(d.Query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for k, vs := range d.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch body := d.Body.(type) {
	case nil:
	case io.Reader:
		reader = body
	case []byte:
		reader = bytes.NewReader(body)
		contentType = "application/octet-stream"
	case string:
		reader = strings.NewReader(body)
		contentType = "text/plain; charset=utf-8"
	case url.Values:
		reader = strings.NewReader(body.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, target, reader)
	if err != nil {
		return nil, err
	}

	for k, vs := range d.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}
