package courier

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// logRequest logs an outgoing request at debug level.
func logRequest(logger zerolog.Logger, req *http.Request) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("host", req.Host).
		Msg("HTTP request")
}

// logResponse logs a completed exchange at debug level.
func logResponse(logger zerolog.Logger, resp *http.Response, duration time.Duration) {
	logger.Debug().
		Int("status", resp.StatusCode).
		Str("status_text", resp.Status).
		Dur("duration_ms", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}

// logError logs a failed exchange at debug level.
func logError(logger zerolog.Logger, req *http.Request, err error, duration time.Duration) {
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("duration_ms", duration).
		Err(err).
		Msg("HTTP request failed")
}

// curlCommand renders the dispatched request as a reproducible cURL command.
// The descriptor supplies the body, since the http.Request body reader may
// already be consumed.
func curlCommand(req *http.Request, desc *RequestDescriptor) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))

	// Sorted headers for stable output.
	keys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}

	if body := curlBody(desc); body != "" {
		parts = append(parts, "-d", fmt.Sprintf("'%s'", strings.ReplaceAll(body, "'", `'\''`)))
	}

	return strings.Join(parts, " ")
}

// curlBody renders the descriptor body for cURL output; readers are opaque
// and omitted.
func curlBody(desc *RequestDescriptor) string {
	if desc == nil || desc.Body == nil {
		return ""
	}
	switch b := desc.Body.(type) {
	case string:
		return b
	case []byte:
		return string(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
