package courier

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResponse(status int, contentType, body string) *Response {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &Response{
		Response: &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
		},
	}
}

func TestResponseIsSuccess(t *testing.T) {
	t.Parallel()

	assert.True(t, newTestResponse(200, "", "").IsSuccess())
	assert.True(t, newTestResponse(204, "", "").IsSuccess())
	assert.False(t, newTestResponse(301, "", "").IsSuccess())
	assert.False(t, newTestResponse(404, "", "").IsSuccess())
	assert.False(t, (&Response{Err: errors.New("boom")}).IsSuccess())
	assert.False(t, (&Response{}).IsSuccess())
}

func TestResponseIsError(t *testing.T) {
	t.Parallel()

	assert.False(t, newTestResponse(200, "", "").IsError())
	assert.False(t, newTestResponse(302, "", "").IsError())
	assert.True(t, newTestResponse(400, "", "").IsError())
	assert.True(t, newTestResponse(503, "", "").IsError())
	assert.True(t, (&Response{Err: errors.New("boom")}).IsError())
}

func TestResponseBody_CachesAcrossReads(t *testing.T) {
	t.Parallel()

	resp := newTestResponse(200, "", "payload")

	first, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(first))

	// The raw reader is drained; the cache must serve repeat reads.
	second, err := resp.Body()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(second))
}

func TestResponseBody_TransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	resp := &Response{Err: boom}

	_, err := resp.Body()
	require.ErrorIs(t, err, boom)
}

func TestResponseString(t *testing.T) {
	t.Parallel()

	s, err := newTestResponse(200, "", "text body").String()
	require.NoError(t, err)
	assert.Equal(t, "text body", s)
}

func TestResponseDecode(t *testing.T) {
	t.Parallel()

	type item struct {
		ID   int    `json:"id" xml:"id"`
		Name string `json:"name" xml:"name"`
	}

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()

		var v item
		resp := newTestResponse(200, "", `{"id":1,"name":"a"}`)
		require.NoError(t, resp.Decode(&v))
		assert.Equal(t, item{ID: 1, Name: "a"}, v)
	})

	t.Run("json content type", func(t *testing.T) {
		t.Parallel()

		var v item
		resp := newTestResponse(200, "application/json; charset=utf-8", `{"id":2,"name":"b"}`)
		require.NoError(t, resp.Decode(&v))
		assert.Equal(t, item{ID: 2, Name: "b"}, v)
	})

	t.Run("xml content type", func(t *testing.T) {
		t.Parallel()

		var v item
		resp := newTestResponse(200, "application/xml", `<item><id>3</id><name>c</name></item>`)
		require.NoError(t, resp.Decode(&v))
		assert.Equal(t, item{ID: 3, Name: "c"}, v)
	})

	t.Run("empty body is a no-op", func(t *testing.T) {
		t.Parallel()

		v := item{ID: 9}
		resp := newTestResponse(200, "application/json", "")
		require.NoError(t, resp.Decode(&v))
		assert.Equal(t, item{ID: 9}, v)
	})
}

func TestResponseRequest(t *testing.T) {
	t.Parallel()

	d := NewRequestDescriptor(http.MethodGet, "/x")
	resp := &Response{request: d}
	assert.Same(t, d, resp.Request())
}
