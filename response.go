package courier

import (
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// Response is the envelope a transport result travels in on its way back
// through the response interceptor chain.
//
// It carries either a raw *http.Response, a transport error, or (for a non-2xx
// outcome) both a response and error-introspection helpers. The body is read
// once and cached, so interceptors and the caller may inspect it repeatedly.
//
// Example:
//
//	var user User
//	resp, err := client.Call(ctx, "GetUser", 42)
//	if err != nil {
//	    return err
//	}
//	if err := resp.Decode(&user); err != nil {
//	    return err
//	}
type Response struct {
	// Response embeds the raw transport response. Nil when the transport
	// failed before producing a response.
	*http.Response

	// Err is the transport error, if any. Error interceptors may replace
	// the envelope to normalize it.
	Err error

	// request is the descriptor that produced this response.
	request *RequestDescriptor

	body     []byte
	bodyRead bool

	// curlCommand is only populated when WithGenerateCurl is set.
	curlCommand string
}

// CurlCommand returns the cURL equivalent of the dispatched request, when
// WithGenerateCurl was set on the client.
func (r *Response) CurlCommand() string {
	return r.curlCommand
}

// Request returns the descriptor that originated this response.
func (r *Response) Request() *RequestDescriptor {
	return r.request
}

// IsSuccess reports whether the transport produced a 2xx response.
func (r *Response) IsSuccess() bool {
	return r.Err == nil && r.Response != nil &&
		r.Response.StatusCode >= 200 && r.Response.StatusCode < 300
}

// IsError reports whether this envelope represents a failed outcome:
// a transport error or a 4xx/5xx status. This is the response-kind marker
// the error-interceptor hook keys on.
func (r *Response) IsError() bool {
	if r.Err != nil {
		return true
	}
	return r.Response != nil && r.Response.StatusCode >= 400
}

// Body returns the response body, reading and caching it on first access.
func (r *Response) Body() ([]byte, error) {
	if r.bodyRead {
		return r.body, nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Response == nil || r.Response.Body == nil {
		r.bodyRead = true
		return nil, nil
	}

	defer r.Response.Body.Close()
	body, err := io.ReadAll(r.Response.Body)
	if err != nil {
		return nil, err
	}

	r.body = body
	r.bodyRead = true
	return r.body, nil
}

// String returns the response body as a string.
func (r *Response) String() (string, error) {
	body, err := r.Body()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Decode unmarshals the response body into v, choosing the codec from the
// Content-Type header. JSON is the default when the content type is missing
// or unrecognized; application/xml and text/xml decode as XML.
func (r *Response) Decode(v any) error {
	body, err := r.Body()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	contentType := ""
	if r.Response != nil {
		contentType = r.Response.Header.Get("Content-Type")
	}
	if strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "text/xml") {
		return xml.Unmarshal(body, v)
	}
	return json.Unmarshal(body, v)
}
