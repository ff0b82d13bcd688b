package courier

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig controls the retry layer of the transport stack. Retries use
// exponential backoff with jitter to avoid synchronized retry storms.
//
//	cfg := courier.DefaultRetryConfig()
//	cfg.MaxRetries = 5
//	client := courier.New(courier.WithRetryConfig(cfg))
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts. The initial
	// request is not counted. Zero disables retries.
	MaxRetries uint

	// InitialInterval is the first backoff interval; subsequent intervals
	// grow by Multiplier.
	InitialInterval time.Duration

	// MaxInterval caps the backoff interval.
	MaxInterval time.Duration

	// MaxElapsedTime is the total time budget for the whole retry
	// sequence. Zero means no budget, only MaxRetries applies.
	MaxElapsedTime time.Duration

	// Multiplier is the exponential growth factor between intervals.
	Multiplier float64

	// JitterFactor randomizes each interval (0.0-1.0). 0.5 means each
	// wait varies by up to ±50%.
	JitterFactor float64
}

// DefaultRetryConfig returns balanced retry defaults: 3 retries starting at
// 500ms, doubling, capped at 30s, within a 2 minute budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
		Multiplier:      2.0,
		JitterFactor:    0.5,
	}
}

// ConservativeRetryConfig returns gentler retry defaults for rate-limited or
// expensive downstreams: 2 retries starting at 1s within a 30s budget.
func ConservativeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.5,
	}
}

// IsEnabled reports whether retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// backOff builds the cenkalti/backoff strategy for this config.
func (c RetryConfig) backOff() *backoff.ExponentialBackOff {
	jitter := c.JitterFactor
	if jitter <= 0 {
		jitter = 0.5
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialInterval,
		RandomizationFactor: jitter,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxInterval,
	}
}

// RetryClassifier decides whether a completed attempt should be retried.
// Return true to retry.
type RetryClassifier func(resp *http.Response, err error) bool

// DefaultRetryClassifier applies production-safe retry rules.
//
// Retries on transient network errors and 429/502/503/504. Does not retry
// 500 (usually a server bug, not transient), other 4xx, context
// cancellation, or permanent errors such as TLS certificate failures.
func DefaultRetryClassifier(resp *http.Response, err error) bool {
	if err == nil && resp != nil && resp.StatusCode < 400 {
		return false
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if isPermanentError(err) {
			return false
		}
		return true
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// StatusRetryClassifier retries on the given status codes; transient network
// errors are always retried.
func StatusRetryClassifier(codes ...int) RetryClassifier {
	codeSet := make(map[int]bool, len(codes))
	for _, code := range codes {
		codeSet[code] = true
	}
	return func(resp *http.Response, err error) bool {
		if err != nil {
			return !isPermanentError(err) && isTransientNetworkError(err)
		}
		return resp != nil && codeSet[resp.StatusCode]
	}
}

// isTransientNetworkError reports errors that typically clear on retry.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, io.EOF) {
		return true
	}

	// Fallback for wrapped errors from third-party transports.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"network is down",
		"network unreachable",
		"i/o timeout",
		"broken pipe",
		"eof",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// isPermanentError reports errors that will not succeed on retry.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}

	if errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"x509:", "certificate", "tls:", "permission denied"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
