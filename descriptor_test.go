package courier

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequest_MergesQueryIntoURL(t *testing.T) {
	t.Parallel()

	d := NewRequestDescriptor(http.MethodGet, "http://h/search?preset=1")
	d.Query.Set("q", "hello world")

	req, err := d.httpRequest(context.Background())
	require.NoError(t, err)

	got := req.URL.Query()
	assert.Equal(t, "1", got.Get("preset"))
	assert.Equal(t, "hello world", got.Get("q"))
}

func TestHTTPRequest_BodyEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        any
		wantBody    string
		wantContent string
	}{
		{"nil body", nil, "", ""},
		{"reader passthrough", strings.NewReader("stream"), "stream", ""},
		{"bytes", []byte("raw"), "raw", "application/octet-stream"},
		{"string", "text", "text", "text/plain; charset=utf-8"},
		{"form values", url.Values{"a": {"1"}}, "a=1", "application/x-www-form-urlencoded"},
		{"struct as json", map[string]int{"n": 7}, `{"n":7}`, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewRequestDescriptor(http.MethodPost, "http://h/x")
			d.Body = tt.body

			req, err := d.httpRequest(context.Background())
			require.NoError(t, err)

			if tt.wantBody == "" && tt.body == nil {
				assert.Nil(t, req.Body)
			} else {
				data, err := io.ReadAll(req.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(data))
			}
			assert.Equal(t, tt.wantContent, req.Header.Get("Content-Type"))
		})
	}
}

func TestHTTPRequest_PresetContentTypeWins(t *testing.T) {
	t.Parallel()

	d := NewRequestDescriptor(http.MethodPost, "http://h/x")
	d.Body = map[string]int{"n": 1}
	d.Header.Set("Content-Type", "application/vnd.custom+json")

	req, err := d.httpRequest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "application/vnd.custom+json", req.Header.Get("Content-Type"))
}

func TestHTTPRequest_CopiesHeaders(t *testing.T) {
	t.Parallel()

	d := NewRequestDescriptor(http.MethodGet, "http://h/x")
	d.Header.Add("X-Tag", "one")
	d.Header.Add("X-Tag", "two")

	req, err := d.httpRequest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, req.Header.Values("X-Tag"))
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()

	d := NewRequestDescriptor(http.MethodGet, "http://h/x")
	d.Header.Set("X-Tag", "orig")
	d.Query.Set("q", "orig")

	clone := d.Clone()
	clone.Header.Set("X-Tag", "changed")
	clone.Query.Set("q", "changed")
	clone.URL = "http://h/y"

	assert.Equal(t, "orig", d.Header.Get("X-Tag"))
	assert.Equal(t, "orig", d.Query.Get("q"))
	assert.Equal(t, "http://h/x", d.URL)
}
