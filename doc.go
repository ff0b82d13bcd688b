// Package courier provides a declarative HTTP client: endpoints are
// registered once as named declarations with explicit parameter bindings,
// then invoked by name. Requests and responses flow through a composable
// interceptor chain, and every exchange rides a layered transport stack with
// retries, circuit breaking, rate limiting, request coalescing and
// OpenTelemetry instrumentation.
//
// # Quick Start
//
// Declare endpoints up front, then call them with positional arguments:
//
//	client := courier.New(
//	    courier.WithBaseURL("https://api.example.com"),
//	    courier.WithServiceName("billing-client"),
//	)
//
//	client.MustRegister(courier.Endpoint{
//	    Name:   "GetUser",
//	    Method: http.MethodGet,
//	    Path:   "/users/:id",
//	    Bindings: []courier.Binding{
//	        courier.BindPath("id", 0),
//	        courier.BindQuery("expand", 1),
//	    },
//	})
//
//	var user User
//	resp, err := client.Call(ctx, "GetUser", 42, "profile")
//	if err == nil {
//	    err = resp.Decode(&user)
//	}
//
// Each binding names a role (path, query, body or header), an optional key
// and the index of the call argument it consumes. Bodies bind at most once;
// absent query values (nil pointers, nil maps, nil slices) are omitted from
// the URL entirely.
//
// # Interceptors
//
// An InterceptorChain folds request transforms in registration order and
// response transforms in reverse order, so the last interceptor registered
// sits closest to the wire:
//
//	client.Chain().
//	    AddRequest(courier.AuthBearer(token)).
//	    AddRequest(courier.CorrelationID("X-Request-Id", nil)).
//	    AddResponseError(func(resp *courier.Response) *courier.Response {
//	        // normalize downstream error payloads
//	        return resp
//	    })
//
// BaseURL and Headers are chain-level conveniences; AuthBearer, APIKey,
// UserAgent, CorrelationID and JSONBody cover the common request transforms.
//
// # Transport Stack
//
// The options assemble the stack around a tuned net/http transport:
//
//	client := courier.New(
//	    courier.WithRetryConfig(courier.DefaultRetryConfig()),
//	    courier.WithBreakerConfig(courier.DefaultBreakerConfig()),
//	    courier.WithRateLimit(courier.DefaultRateLimitConfig()),
//	    courier.WithCoalescing(),
//	)
//
// Retries use exponential backoff with jitter and a pluggable classifier;
// the circuit breaker can share state across instances through Redis
// (NewRedisStore); coalescing collapses concurrent identical GETs into one
// upstream call.
//
// # Observability
//
// Spans are named after the declared endpoint and carry OTel semconv
// attributes; metrics cover request duration, retries, breaker outcomes and
// rate limit waits. WithPrometheusMetrics mirrors request counts and
// latencies onto a Prometheus registerer for scrape-based deployments.
//
// Debug logging and cURL generation help during development:
//
//	client := courier.New(
//	    courier.WithDebug(),
//	    courier.WithGenerateCurl(),
//	)
//
//	resp, _ := client.Call(ctx, "GetUser", 42)
//	fmt.Println(resp.CurlCommand())
//
// # Testing
//
// MockTransport stubs responses while keeping the whole pipeline in play:
//
//	mock := courier.NewMockTransport().StubPath("/users/42", 200, `{"id":42}`)
//	client := courier.New(courier.WithMockTransport(mock))
package courier
