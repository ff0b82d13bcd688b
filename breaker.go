package courier

import (
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore creates a shared breaker state store backed by Redis, so
// every instance of a service sees the same circuit state. When one instance
// trips the breaker, all instances stop calling the failing downstream.
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	cfg := courier.DistributedBreakerConfig(courier.NewRedisStore(rdb))
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker matches the gobreaker execute signature; the transport only
// needs this one method, local and distributed breakers both satisfy it.
type CircuitBreaker interface {
	Execute(req func() (interface{}, error)) (interface{}, error)
}

// BreakerClassifier decides whether an outcome counts as a failure toward
// tripping the circuit. Return true for system failures (5xx, network
// errors); client errors and 429s should not trip the breaker.
type BreakerClassifier func(resp *http.Response, err error) bool

// BreakerConfig configures the circuit breaker layer.
//
// States: Closed (normal traffic), Open (requests rejected immediately),
// Half-Open (limited probes test recovery).
type BreakerConfig struct {
	// MaxRequests is how many probe requests may pass while half-open.
	// Zero allows exactly one.
	MaxRequests uint32

	// Interval is the cyclic period over which the closed-state counts are
	// cleared. Zero keeps counts for the lifetime of the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests in the window
	// before the failure ratio can trip the circuit.
	FailureThreshold uint32

	// FailureRatio trips the circuit when the failure rate meets or
	// exceeds this fraction (0.0 to 1.0).
	FailureRatio float64

	// ConsecutiveFailures trips the circuit after this many failures in a
	// row. Zero disables the rule.
	ConsecutiveFailures uint32

	// Store shares breaker state across instances. Nil keeps the breaker
	// local to this process.
	Store gobreaker.SharedDataStore

	// Classifier decides which outcomes count as failures. Nil uses
	// DefaultBreakerClassifier.
	Classifier BreakerClassifier

	// OnStateChange is invoked on every state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local breaker tuned to fail fast and
// recover fast: 10s windows, trip at 50% failures over at least 20 requests
// or 5 consecutive failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns the default configuration bound to a
// shared store, for fleet-wide circuit breaking.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts 5xx responses and network errors as
// failures. 429s are excluded; backpressure belongs to the retry layer, not
// the breaker.
func DefaultBreakerClassifier(resp *http.Response, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

// isNetworkError reports dial, reset and timeout level failures.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT)
}
