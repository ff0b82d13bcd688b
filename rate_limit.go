package courier

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a request is rejected by the client-side
// rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures client-side rate limiting. The limiter sits
// below the retry layer, so retried attempts consume tokens like any other
// request.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained request rate. Zero or
	// negative disables the limiter.
	RequestsPerSecond float64

	// Burst is how many requests may exceed the rate briefly.
	Burst int

	// WaitOnLimit selects the behavior at the limit: wait for a token
	// (respecting the context deadline) or fail fast with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 100 requests per second with a burst of 10,
// waiting at the limit.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// rateLimitTransport applies a token bucket in front of the base transport.
type rateLimitTransport struct {
	base    http.RoundTripper
	cfg     *internalConfig
	limiter *rate.Limiter
	wait    bool
}

// newRateLimitTransport wraps base with the rate limit layer, or returns
// base unchanged when rate limiting is not configured.
func newRateLimitTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	rl := cfg.rateLimitConfig
	if rl == nil || rl.RequestsPerSecond <= 0 {
		return base
	}

	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}

	return &rateLimitTransport{
		base:    base,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst),
		wait:    rl.WaitOnLimit,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		start := time.Now()
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrRateLimited
		}
		if waited := time.Since(start); waited > 0 {
			t.cfg.metrics.recordRateLimitWait(ctx, waited, t.cfg.baseAttributes())
		}
	} else if !t.limiter.Allow() {
		return nil, ErrRateLimited
	}

	return t.base.RoundTrip(req)
}

// RateLimiterStats reports the limiter state, for operational introspection.
type RateLimiterStats struct {
	// Limit is the sustained rate per second.
	Limit float64
	// Burst is the bucket size.
	Burst int
	// TokensAvailable is the current token count.
	TokensAvailable float64
}

// Stats returns a snapshot of the limiter.
func (t *rateLimitTransport) Stats() RateLimiterStats {
	return RateLimiterStats{
		Limit:           float64(t.limiter.Limit()),
		Burst:           t.limiter.Burst(),
		TokensAvailable: t.limiter.Tokens(),
	}
}
