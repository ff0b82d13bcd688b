package courier

import (
	"io"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// RequestFunc transforms a request descriptor before dispatch. Returning nil
// keeps the descriptor it received (no-op).
type RequestFunc func(*RequestDescriptor) *RequestDescriptor

// ResponseFunc transforms a response envelope after dispatch. Returning nil
// is a no-op; see InterceptorChain.HandleResponse for the exact fallback.
type ResponseFunc func(*Response) *Response

// Interceptor pairs an optional request transform with an optional response
// transform. Either side may be nil. Interceptors are immutable once
// registered.
type Interceptor struct {
	Request  RequestFunc
	Response ResponseFunc
}

// absoluteURL matches URLs that already carry an http or https scheme and
// must not be rewritten by BaseURL.
var absoluteURL = regexp.MustCompile(`^https?:`)

// InterceptorChain holds an ordered list of interceptors and folds them into
// one effective request transform and one effective response transform.
//
// Request transforms run in registration order; response transforms run in
// reverse registration order, so the last interceptor registered wraps
// closest to the wire (stack discipline).
//
// Registration is configuration-then-use: populate the chain fully before the
// first request flows through it. No locking is provided.
type InterceptorChain struct {
	interceptors []Interceptor
}

// NewInterceptorChain creates an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// Add registers an interceptor at the end of the chain.
func (c *InterceptorChain) Add(i Interceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, i)
	return c
}

// AddRequest registers a request-only interceptor.
func (c *InterceptorChain) AddRequest(fn RequestFunc) *InterceptorChain {
	return c.Add(Interceptor{Request: fn})
}

// AddResponse registers a response interceptor that runs over every response,
// successful or not.
func (c *InterceptorChain) AddResponse(fn ResponseFunc) *InterceptorChain {
	return c.Add(Interceptor{Response: fn})
}

// AddResponseError registers a response interceptor that runs only when the
// envelope represents a failed outcome (transport error or 4xx/5xx status).
// Successful responses pass through untouched.
func (c *InterceptorChain) AddResponseError(fn ResponseFunc) *InterceptorChain {
	return c.Add(Interceptor{Response: func(resp *Response) *Response {
		if resp == nil || !resp.IsError() {
			return resp
		}
		return fn(resp)
	}})
}

// Len returns the number of registered interceptors.
func (c *InterceptorChain) Len() int {
	return len(c.interceptors)
}

// HandleRequest folds the descriptor through every request transform in
// registration order. An interceptor returning nil leaves the running
// descriptor unchanged.
func (c *InterceptorChain) HandleRequest(initial *RequestDescriptor) *RequestDescriptor {
	acc := initial
	for _, i := range c.interceptors {
		if i.Request == nil {
			continue
		}
		if next := i.Request(acc); next != nil {
			acc = next
		}
	}
	return acc
}

// HandleResponse folds the envelope through every response transform in
// reverse registration order.
//
// When a transform returns nil the fold falls back to the ORIGINAL envelope
// passed to HandleResponse, not the running accumulator. Error interceptors
// registered downstream rely on this exact behavior; do not "fix" it to
// accumulator fallback.
func (c *InterceptorChain) HandleResponse(initial *Response) *Response {
	acc := initial
	for idx := len(c.interceptors) - 1; idx >= 0; idx-- {
		i := c.interceptors[idx]
		if i.Response == nil {
			continue
		}
		if next := i.Response(acc); next != nil {
			acc = next
		} else {
			acc = initial
		}
	}
	return acc
}

// BaseURL registers a request interceptor that prefixes relative URLs with
// host. Absolute URLs (http: or https:) and URLs matching any of the exclude
// patterns (regular expressions) are left untouched. Exactly one slash is
// normalized at the join point.
//
//	chain.BaseURL("http://api.internal")
//	chain.BaseURL("http://api.internal", `^/debug/`)
func (c *InterceptorChain) BaseURL(host string, excludes ...string) *InterceptorChain {
	patterns := make([]*regexp.Regexp, 0, len(excludes))
	for _, e := range excludes {
		patterns = append(patterns, regexp.MustCompile(e))
	}

	return c.AddRequest(func(d *RequestDescriptor) *RequestDescriptor {
		if absoluteURL.MatchString(d.URL) {
			return d
		}
		for _, p := range patterns {
			if p.MatchString(d.URL) {
				return d
			}
		}
		d.URL = joinURL(host, d.URL)
		return d
	})
}

// Headers registers a request interceptor that merges a fixed set of headers
// into every outgoing request. Existing headers are never removed: a name
// already present ends up with multiple entries.
func (c *InterceptorChain) Headers(headers map[string]string) *InterceptorChain {
	return c.AddRequest(func(d *RequestDescriptor) *RequestDescriptor {
		for k, v := range headers {
			d.Header.Add(k, v)
		}
		return d
	})
}

// joinURL joins base and path with exactly one slash, stripping at most one
// trailing slash from the base and one leading slash from the path.
func joinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}

// Common interceptor helpers

// AuthBearer returns a request transform that sets a Bearer token.
func AuthBearer(token string) RequestFunc {
	return func(d *RequestDescriptor) *RequestDescriptor {
		d.Header.Set("Authorization", "Bearer "+token)
		return d
	}
}

// AuthBearerFunc returns a request transform that sets a Bearer token from a
// function, for dynamic or refreshable tokens.
func AuthBearerFunc(tokenFunc func() string) RequestFunc {
	return func(d *RequestDescriptor) *RequestDescriptor {
		d.Header.Set("Authorization", "Bearer "+tokenFunc())
		return d
	}
}

// APIKey returns a request transform that sets an API key header.
func APIKey(headerName, apiKey string) RequestFunc {
	return func(d *RequestDescriptor) *RequestDescriptor {
		d.Header.Set(headerName, apiKey)
		return d
	}
}

// UserAgent returns a request transform that sets the User-Agent header.
func UserAgent(userAgent string) RequestFunc {
	return func(d *RequestDescriptor) *RequestDescriptor {
		d.Header.Set("User-Agent", userAgent)
		return d
	}
}

// CorrelationID returns a request transform that stamps each request with a
// correlation ID under headerName. A nil idFunc generates UUIDs.
func CorrelationID(headerName string, idFunc func() string) RequestFunc {
	if idFunc == nil {
		idFunc = uuid.NewString
	}
	return func(d *RequestDescriptor) *RequestDescriptor {
		d.Header.Set(headerName, idFunc())
		return d
	}
}

// JSONBody returns a request transform that eagerly encodes the descriptor
// body as JSON and sets the Content-Type header. Bodies that are already
// bytes, strings or readers pass through. Use this when interceptors further
// down the chain need to see the encoded payload; otherwise dispatch encodes
// lazily with the same rules.
func JSONBody() RequestFunc {
	return func(d *RequestDescriptor) *RequestDescriptor {
		switch d.Body.(type) {
		case nil, []byte, string, io.Reader:
			return d
		}
		data, err := json.Marshal(d.Body)
		if err != nil {
			// Interceptors have no error channel; let dispatch surface
			// the marshal failure on the untouched body.
			return d
		}
		d.Body = data
		if d.Header.Get("Content-Type") == "" {
			d.Header.Set("Content-Type", "application/json")
		}
		return d
	}
}
