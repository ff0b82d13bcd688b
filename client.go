package courier

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client dispatches declared endpoints through an interceptor chain and a
// layered transport stack.
//
// Create a Client with New(), register endpoints, then call them by name:
//
//	client := courier.New(
//	    courier.WithBaseURL("https://api.example.com"),
//	    courier.WithServiceName("billing-client"),
//	)
//	client.MustRegister(courier.Endpoint{
//	    Name:   "GetInvoice",
//	    Method: http.MethodGet,
//	    Path:   "/invoices/:id",
//	    Bindings: []courier.Binding{courier.BindPath("id", 0)},
//	})
//
//	resp, err := client.Call(ctx, "GetInvoice", 1042)
//
// Registration is configuration-then-use: register every endpoint and
// interceptor before the first Call. The client performs no locking around
// its registry.
type Client struct {
	httpClient *http.Client
	cfg        *internalConfig

	chain          *InterceptorChain
	baseURL        string
	defaultHeaders http.Header
	endpoints      map[string]*Endpoint
}

// New creates a Client. The transport stack is assembled from the options:
// tuned net/http transport, then rate limiting, request coalescing, retry,
// circuit breaker and OpenTelemetry instrumentation, each layer present only
// when configured (instrumentation is always on and no-ops without a
// configured provider).
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	var base http.RoundTripper
	switch {
	case cfg.mockTransport != nil:
		base = cfg.mockTransport
	case cfg.customTransport != nil:
		base = cfg.customTransport
	default:
		base = cfg.buildTransport()
	}

	rt := newRateLimitTransport(base, cfg)
	rt = newCoalesceTransport(rt, cfg)
	rt = newRetryTransport(rt, cfg)
	rt = newBreakerTransport(rt, cfg)
	rt = newOtelTransport(rt, cfg)

	return &Client{
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   cfg.httpConfig.Timeout,
		},
		cfg:            cfg,
		chain:          cfg.chain,
		baseURL:        cfg.baseURL,
		defaultHeaders: cfg.defaultHeaders,
		endpoints:      make(map[string]*Endpoint),
	}
}

// HTTP returns the underlying *http.Client, for handing to libraries that
// expect one. Requests made through it bypass the declarative layer but
// still pass through the transport stack.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Chain returns the client's interceptor chain for further registration
// during configuration.
func (c *Client) Chain() *InterceptorChain {
	return c.chain
}

// Register validates and registers an endpoint declaration. It fails fast on
// declaration errors: a missing name or method, a Path or Header binding
// without a key, more than one Body binding, or a duplicate name.
func (c *Client) Register(e Endpoint) error {
	if err := e.validate(); err != nil {
		return err
	}
	if _, exists := c.endpoints[e.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEndpoint, e.Name)
	}
	ep := e
	c.endpoints[e.Name] = &ep
	return nil
}

// MustRegister is Register, panicking on declaration errors. Intended for
// static setup code where a bad declaration is a programming bug.
func (c *Client) MustRegister(endpoints ...Endpoint) *Client {
	for _, e := range endpoints {
		if err := c.Register(e); err != nil {
			panic(err)
		}
	}
	return c
}

// Call invokes a registered endpoint by name with positional arguments bound
// per the endpoint's declaration.
//
// The assembled descriptor flows through the request interceptors, is
// dispatched, and the resulting envelope flows back through the response
// interceptors (in reverse registration order). If the final envelope still
// carries a transport error, Call returns it alongside the envelope.
func (c *Client) Call(ctx context.Context, name string, args ...any) (*Response, error) {
	ep, ok := c.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEndpoint, name)
	}

	desc, err := ep.descriptor(c.baseURL, c.defaultHeaders, args)
	if err != nil {
		return nil, err
	}

	return c.dispatch(ctx, ep.Name, desc)
}

// Do dispatches a pre-built descriptor through the same interceptor and
// transport pipeline as Call. The base URL is not applied; use the BaseURL
// interceptor or an absolute URL.
func (c *Client) Do(ctx context.Context, desc *RequestDescriptor) (*Response, error) {
	return c.dispatch(ctx, "", desc)
}

// dispatch runs the request chain, performs the HTTP exchange and runs the
// response chain.
func (c *Client) dispatch(ctx context.Context, operation string, desc *RequestDescriptor) (*Response, error) {
	desc = c.chain.HandleRequest(desc)
	if desc == nil || desc.URL == "" {
		return nil, ErrDroppedURL
	}

	if operation != "" {
		ctx = withOperation(ctx, operation)
	}

	req, err := desc.httpRequest(ctx)
	if err != nil {
		return nil, err
	}

	if c.cfg.debug {
		logRequest(c.cfg.logger, req)
	}

	start := time.Now()
	// The envelope owns the response body; Response.Body() closes it.
	//nolint:bodyclose
	httpResp, httpErr := c.httpClient.Do(req)
	duration := time.Since(start)

	if c.cfg.debug {
		if httpErr != nil {
			logError(c.cfg.logger, req, httpErr, duration)
		} else {
			logResponse(c.cfg.logger, httpResp, duration)
		}
	}

	env := &Response{
		Response: httpResp,
		Err:      httpErr,
		request:  desc,
	}

	if c.cfg.generateCurl {
		env.curlCommand = curlCommand(req, desc)
	}

	env = c.chain.HandleResponse(env)
	if env.Err != nil {
		return env, env.Err
	}
	return env, nil
}
