package courier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRequest_RunsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	var order []string
	chain := NewInterceptorChain().
		AddRequest(func(d *RequestDescriptor) *RequestDescriptor {
			order = append(order, "first")
			d.Header.Set("X-Step", "first")
			return d
		}).
		AddRequest(func(d *RequestDescriptor) *RequestDescriptor {
			order = append(order, "second")
			d.Header.Set("X-Step", "second")
			return d
		})

	d := chain.HandleRequest(NewRequestDescriptor(http.MethodGet, "/x"))

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "second", d.Header.Get("X-Step"))
}

func TestHandleRequest_NilReturnKeepsAccumulator(t *testing.T) {
	t.Parallel()

	chain := NewInterceptorChain().
		AddRequest(func(d *RequestDescriptor) *RequestDescriptor {
			d.Header.Set("X-Kept", "yes")
			return d
		}).
		AddRequest(func(*RequestDescriptor) *RequestDescriptor {
			return nil
		}).
		AddRequest(func(d *RequestDescriptor) *RequestDescriptor {
			// The accumulated descriptor must survive the nil return above.
			assert.Equal(t, "yes", d.Header.Get("X-Kept"))
			return d
		})

	d := chain.HandleRequest(NewRequestDescriptor(http.MethodGet, "/x"))
	assert.Equal(t, "yes", d.Header.Get("X-Kept"))
}

func TestHandleResponse_RunsInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []string
	chain := NewInterceptorChain().
		AddResponse(func(r *Response) *Response {
			order = append(order, "first")
			return r
		}).
		AddResponse(func(r *Response) *Response {
			order = append(order, "second")
			return r
		})

	chain.HandleResponse(&Response{})

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestHandleResponse_NilFallsBackToOriginal(t *testing.T) {
	t.Parallel()

	original := &Response{}
	replaced := &Response{}

	chain := NewInterceptorChain().
		AddResponse(func(r *Response) *Response {
			// Runs last (reverse order); must see the original again, not
			// the replacement that the nil return discarded.
			assert.Same(t, original, r)
			return r
		}).
		AddResponse(func(*Response) *Response {
			return nil
		}).
		AddResponse(func(*Response) *Response {
			return replaced
		})

	out := chain.HandleResponse(original)
	assert.Same(t, original, out)
}

func TestAddResponseError_SkipsSuccesses(t *testing.T) {
	t.Parallel()

	var calls int
	chain := NewInterceptorChain().AddResponseError(func(r *Response) *Response {
		calls++
		return r
	})

	ok := &Response{Response: &http.Response{StatusCode: http.StatusOK}}
	chain.HandleResponse(ok)
	assert.Zero(t, calls)

	failed := &Response{Response: &http.Response{StatusCode: http.StatusInternalServerError}}
	chain.HandleResponse(failed)
	assert.Equal(t, 1, calls)

	errored := &Response{Err: assert.AnError}
	chain.HandleResponse(errored)
	assert.Equal(t, 2, calls)
}

func TestBaseURL_PrefixesRelativeURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		url  string
		want string
	}{
		{"plain join", "http://api.internal", "/users", "http://api.internal/users"},
		{"both slashes", "http://api.internal/", "/users", "http://api.internal/users"},
		{"no slashes", "http://api.internal", "users", "http://api.internal/users"},
		{"empty path", "http://api.internal", "", "http://api.internal"},
		{"absolute http untouched", "http://api.internal", "http://other/users", "http://other/users"},
		{"absolute https untouched", "http://api.internal", "https://other/users", "https://other/users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain := NewInterceptorChain().BaseURL(tt.host)
			d := chain.HandleRequest(NewRequestDescriptor(http.MethodGet, tt.url))
			assert.Equal(t, tt.want, d.URL)
		})
	}
}

func TestBaseURL_ExcludePatterns(t *testing.T) {
	t.Parallel()

	chain := NewInterceptorChain().BaseURL("http://api.internal", `^/debug/`)

	d := chain.HandleRequest(NewRequestDescriptor(http.MethodGet, "/debug/vars"))
	assert.Equal(t, "/debug/vars", d.URL)

	d = chain.HandleRequest(NewRequestDescriptor(http.MethodGet, "/users"))
	assert.Equal(t, "http://api.internal/users", d.URL)
}

func TestHeaders_AppendsDuplicates(t *testing.T) {
	t.Parallel()

	chain := NewInterceptorChain().Headers(map[string]string{"X-Tag": "chain"})

	d := NewRequestDescriptor(http.MethodGet, "/x")
	d.Header.Add("X-Tag", "preset")

	d = chain.HandleRequest(d)
	assert.Equal(t, []string{"preset", "chain"}, d.Header.Values("X-Tag"))
}

func TestAuthBearer(t *testing.T) {
	t.Parallel()

	var capturedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(
		WithBaseURL(server.URL),
		WithRequestInterceptor(AuthBearer("test-token-123")),
	)
	client.MustRegister(Endpoint{Name: "Test", Method: http.MethodGet, Path: "/test"})

	_, err := client.Call(context.Background(), "Test")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token-123", capturedAuth)
}

func TestAuthBearerFunc_RefreshesToken(t *testing.T) {
	t.Parallel()

	token := "token-1"
	fn := AuthBearerFunc(func() string { return token })

	d := fn(NewRequestDescriptor(http.MethodGet, "/x"))
	assert.Equal(t, "Bearer token-1", d.Header.Get("Authorization"))

	token = "token-2"
	d = fn(NewRequestDescriptor(http.MethodGet, "/x"))
	assert.Equal(t, "Bearer token-2", d.Header.Get("Authorization"))
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	d := APIKey("X-API-Key", "my-secret")(NewRequestDescriptor(http.MethodGet, "/x"))
	assert.Equal(t, "my-secret", d.Header.Get("X-API-Key"))
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	d := UserAgent("MyApp/1.0")(NewRequestDescriptor(http.MethodGet, "/x"))
	assert.Equal(t, "MyApp/1.0", d.Header.Get("User-Agent"))
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	t.Run("custom generator", func(t *testing.T) {
		t.Parallel()

		fn := CorrelationID("X-Request-Id", func() string { return "fixed-id" })
		d := fn(NewRequestDescriptor(http.MethodGet, "/x"))
		assert.Equal(t, "fixed-id", d.Header.Get("X-Request-Id"))
	})

	t.Run("default generates uuids", func(t *testing.T) {
		t.Parallel()

		fn := CorrelationID("X-Request-Id", nil)
		first := fn(NewRequestDescriptor(http.MethodGet, "/x")).Header.Get("X-Request-Id")
		second := fn(NewRequestDescriptor(http.MethodGet, "/x")).Header.Get("X-Request-Id")

		assert.NotEmpty(t, first)
		assert.NotEqual(t, first, second)
	})
}

func TestJSONBody(t *testing.T) {
	t.Parallel()

	t.Run("encodes structs", func(t *testing.T) {
		t.Parallel()

		d := NewRequestDescriptor(http.MethodPost, "/x")
		d.Body = map[string]int{"a": 1}

		d = JSONBody()(d)

		assert.Equal(t, []byte(`{"a":1}`), d.Body)
		assert.Equal(t, "application/json", d.Header.Get("Content-Type"))
	})

	t.Run("passes through raw bodies", func(t *testing.T) {
		t.Parallel()

		d := NewRequestDescriptor(http.MethodPost, "/x")
		d.Body = "raw"

		d = JSONBody()(d)

		assert.Equal(t, "raw", d.Body)
		assert.Empty(t, d.Header.Get("Content-Type"))
	})
}

func TestJoinURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base, path, want string
	}{
		{"http://h", "/p", "http://h/p"},
		{"http://h/", "/p", "http://h/p"},
		{"http://h/", "p", "http://h/p"},
		{"http://h", "p", "http://h/p"},
		{"http://h//", "/p", "http://h//p"}, // only one slash stripped each side
		{"http://h", "", "http://h"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, joinURL(tt.base, tt.path), "join(%q, %q)", tt.base, tt.path)
	}
}
