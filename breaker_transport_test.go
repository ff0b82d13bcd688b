package courier

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetError struct{ msg string }

func (e *fakeNetError) Error() string   { return e.msg }
func (e *fakeNetError) Timeout() bool   { return false }
func (e *fakeNetError) Temporary() bool { return false }

func TestDefaultBreakerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultBreakerConfig()
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(20), cfg.FailureThreshold)
	assert.InEpsilon(t, 0.5, cfg.FailureRatio, 0.001)
	assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
	assert.NotNil(t, cfg.Classifier)
	assert.Nil(t, cfg.Store)
}

func TestDefaultBreakerClassifier(t *testing.T) {
	t.Parallel()

	assert.False(t, DefaultBreakerClassifier(&http.Response{StatusCode: 200}, nil))
	assert.False(t, DefaultBreakerClassifier(&http.Response{StatusCode: 404}, nil))
	// 429 is backpressure, not a system failure.
	assert.False(t, DefaultBreakerClassifier(&http.Response{StatusCode: 429}, nil))
	assert.True(t, DefaultBreakerClassifier(&http.Response{StatusCode: 500}, nil))
	assert.True(t, DefaultBreakerClassifier(&http.Response{StatusCode: 503}, nil))
	assert.True(t, DefaultBreakerClassifier(nil, &fakeNetError{msg: "conn refused"}))
	assert.False(t, DefaultBreakerClassifier(nil, assert.AnError))
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubResponse(http.StatusInternalServerError, "boom")

	var transitions []gobreaker.State
	client := New(
		WithMockTransport(mock),
		WithServiceName("breaker-test"),
		WithBreakerConfig(BreakerConfig{
			MaxRequests:         1,
			Timeout:             time.Minute,
			FailureThreshold:    2,
			ConsecutiveFailures: 2,
			Classifier:          DefaultBreakerClassifier,
			OnStateChange: func(_ string, _, to gobreaker.State) {
				transitions = append(transitions, to)
			},
		}),
	)
	client.MustRegister(Endpoint{Name: "Get", Method: http.MethodGet, Path: "http://svc.internal/x"})

	// Failures pass through while the breaker is closed; the synthetic
	// failure marker never reaches the caller.
	for i := 0; i < 2; i++ {
		resp, err := client.Call(context.Background(), "Get")
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}

	// The circuit is open now; requests are rejected without dialing out.
	_, err := client.Call(context.Background(), "Get")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, mock.RequestCount())

	require.NotEmpty(t, transitions)
	assert.Equal(t, gobreaker.StateOpen, transitions[len(transitions)-1])
}

func TestBreaker_SuccessesKeepCircuitClosed(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")

	client := New(
		WithMockTransport(mock),
		WithBreakerConfig(DefaultBreakerConfig()),
	)
	client.MustRegister(Endpoint{Name: "Get", Method: http.MethodGet, Path: "http://svc.internal/x"})

	for i := 0; i < 10; i++ {
		resp, err := client.Call(context.Background(), "Get")
		require.NoError(t, err)
		assert.True(t, resp.IsSuccess())
	}
	assert.Equal(t, 10, mock.RequestCount())
}

func TestBreaker_DisabledWithoutConfig(t *testing.T) {
	t.Parallel()

	cfg := &internalConfig{}
	base := NewMockTransport()

	rt := newBreakerTransport(base, cfg)
	assert.Same(t, http.RoundTripper(base), rt)
}

func TestBreaker_DistributedStore(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb)

	cfg := DistributedBreakerConfig(store)
	assert.Equal(t, store, cfg.Store)

	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")
	client := New(
		WithMockTransport(mock),
		WithServiceName("distributed-test"),
		WithBreakerConfig(cfg),
	)
	client.MustRegister(Endpoint{Name: "Get", Method: http.MethodGet, Path: "http://svc.internal/x"})

	resp, err := client.Call(context.Background(), "Get")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
}
