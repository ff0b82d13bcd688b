package courier

import (
	"errors"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"
)

// breakerTransport wraps each exchange in a circuit breaker.
type breakerTransport struct {
	breaker    CircuitBreaker
	base       http.RoundTripper
	classifier BreakerClassifier
	cfg        *internalConfig
	name       string
}

// errSyntheticFailure tells the breaker that an exchange failed (for example
// a 500 status) even though RoundTrip returned no error. It is unwrapped
// before the response reaches the caller.
var errSyntheticFailure = errors.New("synthetic failure")

// newBreakerTransport wraps base with the circuit breaker layer, or returns
// base unchanged when no breaker is configured.
func newBreakerTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.breakerConfig == nil {
		return base
	}

	bc := cfg.breakerConfig

	name := cfg.serviceName
	if name == "" {
		name = "courier"
	}

	classifier := bc.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if bc.FailureThreshold > 0 && counts.Requests < bc.FailureThreshold {
				return false
			}
			if bc.ConsecutiveFailures > 0 &&
				counts.ConsecutiveFailures >= bc.ConsecutiveFailures {
				return true
			}
			if bc.FailureRatio > 0 && counts.TotalFailures > 0 {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= bc.FailureRatio
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker
	if bc.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[interface{}](bc.Store, settings)
		if err != nil {
			// A local breaker still protects this process; degrade to it
			// rather than running unprotected when the shared store cannot
			// be initialized.
			cb = gobreaker.NewCircuitBreaker[interface{}](settings)
		} else {
			cb = dcb
		}
	} else {
		cb = gobreaker.NewCircuitBreaker[interface{}](settings)
	}

	return &breakerTransport{
		breaker:    cb,
		base:       base,
		classifier: classifier,
		cfg:        cfg,
		name:       name,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	res, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.base.RoundTrip(req) //nolint:bodyclose

		if t.classifier(resp, err) {
			if err != nil {
				return resp, err
			}
			return resp, errSyntheticFailure
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.cfg.metrics.recordBreakerResult(ctx, t.name, "rejected")
		} else {
			t.cfg.metrics.recordBreakerResult(ctx, t.name, "failure")
		}

		// A synthetic failure carries a real response; hand it back.
		if errors.Is(err, errSyntheticFailure) {
			if resp, ok := res.(*http.Response); ok {
				return resp, nil
			}
		}

		return nil, err
	}

	t.cfg.metrics.recordBreakerResult(ctx, t.name, "success")

	if resp, ok := res.(*http.Response); ok {
		return resp, nil
	}
	return nil, errors.New("circuit breaker returned unknown response type")
}
