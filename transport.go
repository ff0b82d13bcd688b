package courier

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface check.
var _ http.RoundTripper = (*otelTransport)(nil)

// otelTransport is the outermost transport layer. It opens a client span per
// exchange, injects trace context into the outgoing headers, and records
// request metrics. When the client carries a Prometheus registerer the same
// observations are mirrored there.
type otelTransport struct {
	base       http.RoundTripper
	cfg        *internalConfig
	propagator propagation.TextMapPropagator
}

func newOtelTransport(base http.RoundTripper, cfg *internalConfig) *otelTransport {
	return &otelTransport{
		base:       base,
		cfg:        cfg,
		propagator: cfg.propagators,
	}
}

// RoundTrip implements http.RoundTripper with tracing and metrics.
func (t *otelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	// Spans are named after the declared endpoint when the request came
	// through Call; ad-hoc requests fall back to "HTTP {method}".
	operation := operationFromContext(ctx)
	spanName := "HTTP " + req.Method
	if operation != "" {
		spanName = operation
	}

	ctx, span := t.cfg.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.requestAttributes(req, operation)...),
	)
	defer span.End()

	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	baseAttrs := t.cfg.baseAttributes()
	t.cfg.metrics.recordActiveRequestStart(ctx, baseAttrs)
	defer t.cfg.metrics.recordActiveRequestEnd(ctx, baseAttrs)

	if req.ContentLength > 0 {
		t.cfg.metrics.recordRequestBodySize(ctx, req.ContentLength, baseAttrs)
	}

	req = req.WithContext(ctx)

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		errorType := classifyError(err)
		setSpanError(span, err, errorType)
		t.cfg.metrics.recordError(ctx, errorType, baseAttrs)
		t.cfg.metrics.recordRequestDuration(ctx, duration, t.outcomeAttributes(req, nil, errorType))
		t.cfg.promMetrics.observe(operation, req.Method, "error", duration)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.ContentLength > 0 {
		span.SetAttributes(attribute.Int64("http.response.body.size", resp.ContentLength))
		t.cfg.metrics.recordResponseBodySize(ctx, resp.ContentLength, baseAttrs)
	}

	if resp.StatusCode >= 400 {
		errorType := errorTypeFromStatusCode(resp.StatusCode)
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		span.SetAttributes(attribute.String("error.type", errorType))
	}

	t.cfg.metrics.recordRequestDuration(ctx, duration, t.outcomeAttributes(req, resp, ""))
	t.cfg.promMetrics.observe(operation, req.Method, strconv.Itoa(resp.StatusCode), duration)

	return resp, nil
}

// requestAttributes returns the span attributes for an outgoing request.
func (t *otelTransport) requestAttributes(req *http.Request, operation string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8)
	attrs = append(attrs, t.cfg.baseAttributes()...)
	attrs = append(attrs, attribute.String("http.request.method", req.Method))

	if operation != "" {
		attrs = append(attrs, attribute.String("http.client.operation", operation))
	}

	if req.URL != nil {
		attrs = append(attrs, attribute.String("url.full", req.URL.String()))
		attrs = append(attrs, attribute.String("url.scheme", req.URL.Scheme))
		if host := req.URL.Hostname(); host != "" {
			attrs = append(attrs, attribute.String("server.address", host))
		}
		attrs = append(attrs, attribute.Int("server.port", serverPort(req.URL.Port(), req.URL.Scheme)))
	}

	if req.ContentLength > 0 {
		attrs = append(attrs, attribute.Int64("http.request.body.size", req.ContentLength))
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}

	return attrs
}

// outcomeAttributes returns the attributes recorded on the duration metric.
func (t *otelTransport) outcomeAttributes(
	req *http.Request,
	resp *http.Response,
	errorType string,
) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	attrs = append(attrs, t.cfg.baseAttributes()...)
	attrs = append(attrs, attribute.String("http.request.method", req.Method))

	if req.URL != nil {
		if host := req.URL.Hostname(); host != "" {
			attrs = append(attrs, attribute.String("server.address", host))
		}
		attrs = append(attrs, attribute.Int("server.port", serverPort(req.URL.Port(), req.URL.Scheme)))
	}

	if resp != nil {
		attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			errorType = errorTypeFromStatusCode(resp.StatusCode)
		}
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String("error.type", errorType))
	}

	return attrs
}

// serverPort resolves the effective port, applying scheme defaults.
func serverPort(port, scheme string) int {
	if port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	if scheme == "https" {
		return 443
	}
	return 80
}
