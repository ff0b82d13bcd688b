package courier

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// retryTransport wraps a RoundTripper with classifier-driven retries.
type retryTransport struct {
	base       http.RoundTripper
	cfg        *internalConfig
	classifier RetryClassifier
}

// newRetryTransport wraps base with the retry layer, or returns base
// unchanged when retries are disabled.
func newRetryTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if !cfg.retryConfig.IsEnabled() {
		return base
	}

	classifier := cfg.retryClassifier
	if classifier == nil {
		classifier = DefaultRetryClassifier
	}

	return &retryTransport{
		base:       base,
		cfg:        cfg,
		classifier: classifier,
	}
}

// RoundTrip implements http.RoundTripper with automatic retries.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cfg := t.cfg.retryConfig

	// Capture the body up front so each attempt replays it.
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	span := trace.SpanFromContext(ctx)

	b := t.cfg.retryBackOff
	if b != nil {
		b.Reset()
	} else {
		b = cfg.backOff()
	}

	var attempt int
	start := time.Now()

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		// The initial attempt counts toward the total tries.
		backoff.WithMaxTries(cfg.MaxRetries + 1),
	}
	if cfg.MaxElapsedTime > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}
	retryOpts = append(retryOpts, backoff.WithNotify(func(err error, next time.Duration) {
		attempt++
		if span.IsRecording() {
			attrs := []attribute.KeyValue{
				attribute.Int("retry.attempt", attempt),
				attribute.Int64("retry.delay_ms", next.Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, attribute.String("retry.reason", truncate(err.Error(), 50)))
			}
			span.AddEvent("http.retry", trace.WithAttributes(attrs...))
		}
		t.cfg.metrics.recordRetryAttempt(ctx, t.cfg.baseAttributes())
	}))

	resp, lastErr := backoff.Retry(ctx, func() (*http.Response, error) {
		attemptReq := t.cloneRequest(req, bodyBytes)

		resp, err := t.base.RoundTrip(attemptReq)

		if t.classifier(resp, err) {
			// Drain before retrying so the connection can be reused.
			if resp != nil && resp.Body != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			if err == nil && resp != nil {
				// backoff treats a nil error as success, so a
				// status-driven retry needs an explicit error.
				err = &retryStatusError{code: resp.StatusCode}
			}
			return nil, err
		}

		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}, retryOpts...)

	if attempt > 0 {
		span.SetAttributes(
			attribute.Int("http.retry_count", attempt),
			attribute.Bool("http.retry_success", lastErr == nil),
		)
		if lastErr != nil {
			t.cfg.metrics.recordRetryExhausted(ctx, t.cfg.baseAttributes())
		}
	}
	t.cfg.metrics.recordRetryDuration(ctx, time.Since(start), t.cfg.baseAttributes())

	return resp, lastErr
}

// cloneRequest copies the request with a fresh body for the next attempt.
func (t *retryTransport) cloneRequest(req *http.Request, bodyBytes []byte) *http.Request {
	clone := req.Clone(req.Context())

	if bodyBytes != nil {
		clone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		clone.ContentLength = int64(len(bodyBytes))
	} else if req.GetBody != nil {
		var err error
		clone.Body, err = req.GetBody()
		if err != nil {
			clone.Body = req.Body
		}
	}

	return clone
}

// retryStatusError marks a response status the classifier asked to retry.
// It surfaces to the caller only when all attempts are exhausted.
type retryStatusError struct {
	code int
}

func (e *retryStatusError) Error() string {
	return "retryable status " + strconv.Itoa(e.code)
}

// truncate shortens s to at most n runes for span attributes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
