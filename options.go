package courier

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/courier-go"
)

// Config holds the HTTP transport tuning parameters for the built-in
// net/http transport. Use DefaultConfig() as a starting point and adjust
// individual fields.
//
//	cfg := courier.DefaultConfig()
//	cfg.Timeout = 5 * time.Second
//	client := courier.New(courier.WithConfig(cfg))
type Config struct {
	// Timeout bounds the entire request lifecycle, including connection
	// establishment and reading the response body. Zero means no timeout.
	Timeout time.Duration

	// MaxIdleConns caps idle keep-alive connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost caps idle connections kept per host. Raise this
	// when the client talks mostly to a single downstream service.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost caps total (idle + active) connections per host.
	// Zero means unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays pooled before
	// being closed.
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout time.Duration

	// DialTimeout bounds TCP connection establishment.
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	KeepAlive time.Duration

	// DisableCompression suppresses the automatic Accept-Encoding: gzip
	// header. Disabled by default; enable compression explicitly when the
	// downstream supports it.
	DisableCompression bool

	// ForceHTTP2 forces HTTP/2 (requires HTTPS).
	ForceHTTP2 bool
}

// DefaultConfig returns balanced transport settings for typical service-to-
// service calls.
func DefaultConfig() Config {
	return Config{
		Timeout:             15 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		DisableCompression:  true,
	}
}

// LowLatencyConfig returns settings that fail fast, for latency-sensitive
// callers.
func LowLatencyConfig() Config {
	return Config{
		Timeout:             5 * time.Second,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		DialTimeout:         2 * time.Second,
		KeepAlive:           15 * time.Second,
		DisableCompression:  true,
		ForceHTTP2:          true,
	}
}

// ConservativeConfig returns resource-conscious settings for constrained
// environments such as serverless functions.
func ConservativeConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		DisableCompression:  true,
	}
}

// internalConfig holds all client configuration assembled from options.
type internalConfig struct {
	httpConfig Config

	// Declarative surface
	baseURL        string
	defaultHeaders http.Header
	chain          *InterceptorChain

	// Transport stack
	customTransport http.RoundTripper
	mockTransport   *MockTransport
	tlsConfig       *tls.Config
	proxyURL        *url.URL
	proxyFromEnv    bool

	// Resilience
	retryConfig     RetryConfig
	retryBackOff    backoff.BackOff
	retryClassifier RetryClassifier
	breakerConfig   *BreakerConfig
	rateLimitConfig *RateLimitConfig
	coalesceGETs    bool

	// Observability
	serviceName    string
	debug          bool
	generateCurl   bool
	logger         zerolog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagators    propagation.TextMapPropagator
	promRegisterer prometheus.Registerer

	// Instruments, initialized after options are applied.
	tracer      trace.Tracer
	meter       metric.Meter
	metrics     *metrics
	promMetrics *promMetrics
}

// newConfig applies options over defaults and initializes the instruments.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		defaultHeaders: make(http.Header),
		chain:          NewInterceptorChain(),
		proxyFromEnv:   true,
		logger:         zerolog.New(os.Stdout).With().Timestamp().Logger(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.tracer = cfg.tracerProvider.Tracer(scope)
	cfg.meter = cfg.meterProvider.Meter(scope)

	// Instrument creation failures leave metrics nil; recording is a no-op then.
	cfg.metrics, _ = newMetrics(cfg.meter)

	if cfg.promRegisterer != nil {
		cfg.promMetrics = newPromMetrics(cfg.promRegisterer, cfg.serviceName)
	}

	return cfg
}

// buildTransport creates an http.Transport from the tuning config.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:   hc.DialTimeout,
		KeepAlive: hc.KeepAlive,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        hc.MaxIdleConns,
		MaxIdleConnsPerHost: hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:     hc.MaxConnsPerHost,
		IdleConnTimeout:     hc.IdleConnTimeout,
		TLSHandshakeTimeout: hc.TLSHandshakeTimeout,
		DisableCompression:  hc.DisableCompression,
		TLSClientConfig:     cfg.tlsConfig,
		ForceAttemptHTTP2:   hc.ForceHTTP2,
	}

	if cfg.proxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.proxyURL)
	} else if cfg.proxyFromEnv {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// Option configures the client.
type Option func(*internalConfig)

// WithConfig sets the HTTP transport tuning configuration.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithBaseURL sets the base URL joined in front of every endpoint path.
// Endpoint paths that are already absolute are dispatched as-is.
func WithBaseURL(baseURL string) Option {
	return func(cfg *internalConfig) {
		cfg.baseURL = baseURL
	}
}

// WithDefaultHeader adds one header applied to every request before the
// endpoint's fixed headers and per-call bindings.
func WithDefaultHeader(key, value string) Option {
	return func(cfg *internalConfig) {
		cfg.defaultHeaders.Add(key, value)
	}
}

// WithDefaultHeaders adds a set of headers applied to every request.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(cfg *internalConfig) {
		for k, v := range headers {
			cfg.defaultHeaders.Add(k, v)
		}
	}
}

// WithInterceptor appends an interceptor to the client chain.
func WithInterceptor(i Interceptor) Option {
	return func(cfg *internalConfig) {
		cfg.chain.Add(i)
	}
}

// WithRequestInterceptor appends a request-only interceptor.
func WithRequestInterceptor(fn RequestFunc) Option {
	return func(cfg *internalConfig) {
		cfg.chain.AddRequest(fn)
	}
}

// WithResponseInterceptor appends a response interceptor that runs over
// every response.
func WithResponseInterceptor(fn ResponseFunc) Option {
	return func(cfg *internalConfig) {
		cfg.chain.AddResponse(fn)
	}
}

// WithResponseErrorInterceptor appends a response interceptor that runs only
// on failed outcomes (transport error or 4xx/5xx).
func WithResponseErrorInterceptor(fn ResponseFunc) Option {
	return func(cfg *internalConfig) {
		cfg.chain.AddResponseError(fn)
	}
}

// WithChain replaces the client's interceptor chain entirely. Useful when a
// fully-populated chain is shared across clients.
func WithChain(chain *InterceptorChain) Option {
	return func(cfg *internalConfig) {
		if chain != nil {
			cfg.chain = chain
		}
	}
}

// WithTransport sets a custom base http.RoundTripper. The resilience and
// instrumentation layers still wrap it.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.customTransport = rt
	}
}

// WithTLSConfig sets a custom TLS configuration for the built-in transport.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.tlsConfig = tlsCfg
	}
}

// WithProxyURL routes all requests through the given proxy, overriding
// environment variables.
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.proxyURL = proxyURL
		cfg.proxyFromEnv = false
	}
}

// WithServiceName identifies this client in spans, metrics and breaker
// naming.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.serviceName = name
	}
}

// WithRetryConfig enables retries with the given configuration.
func WithRetryConfig(rc RetryConfig) Option {
	return func(cfg *internalConfig) {
		cfg.retryConfig = rc
	}
}

// WithRetryBackOff overrides the backoff strategy used between retries.
func WithRetryBackOff(b backoff.BackOff) Option {
	return func(cfg *internalConfig) {
		cfg.retryBackOff = b
	}
}

// WithRetryClassifier overrides which outcomes are retried.
func WithRetryClassifier(c RetryClassifier) Option {
	return func(cfg *internalConfig) {
		cfg.retryClassifier = c
	}
}

// WithBreakerConfig enables the circuit breaker.
func WithBreakerConfig(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.breakerConfig = &bc
	}
}

// WithRateLimit enables client-side rate limiting.
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.rateLimitConfig = &rl
	}
}

// WithCoalescing collapses concurrent identical GET requests into a single
// upstream call.
func WithCoalescing() Option {
	return func(cfg *internalConfig) {
		cfg.coalesceGETs = true
	}
}

// WithDebug enables request/response debug logging.
func WithDebug() Option {
	return func(cfg *internalConfig) {
		cfg.debug = true
	}
}

// WithLogger sets the zerolog logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.logger = logger
	}
}

// WithGenerateCurl attaches an equivalent cURL command to each response for
// debugging.
func WithGenerateCurl() Option {
	return func(cfg *internalConfig) {
		cfg.generateCurl = true
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider. The global
// provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.meterProvider = mp
	}
}

// WithPropagators sets custom context propagators. W3C TraceContext and
// Baggage are used by default.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		cfg.propagators = p
	}
}

// WithPrometheusMetrics registers request counters and duration histograms
// on the given registerer, for deployments that scrape Prometheus instead of
// exporting OTel metrics.
func WithPrometheusMetrics(reg prometheus.Registerer) Option {
	return func(cfg *internalConfig) {
		cfg.promRegisterer = reg
	}
}
