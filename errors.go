package courier

import "errors"

// Configuration errors are programmer errors: they surface synchronously at
// registration or call time and are not recoverable at runtime.
var (
	// ErrMissingKey is returned when a Path or Header binding is declared
	// without a key name.
	ErrMissingKey = errors.New("binding requires a key")

	// ErrMultipleBodyBindings is returned when an endpoint declares more
	// than one Body binding.
	ErrMultipleBodyBindings = errors.New("endpoint declares more than one body binding")

	// ErrMissingMethod is returned when an endpoint is declared without an
	// HTTP method.
	ErrMissingMethod = errors.New("endpoint requires an HTTP method")

	// ErrMissingName is returned when an endpoint is declared without a
	// name to register it under.
	ErrMissingName = errors.New("endpoint requires a name")

	// ErrUnknownEndpoint is returned by Call for a name that was never
	// registered.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrDuplicateEndpoint is returned when registering a name twice.
	ErrDuplicateEndpoint = errors.New("endpoint already registered")

	// ErrMissingArgument is returned when a call supplies fewer arguments
	// than the endpoint's bindings reference.
	ErrMissingArgument = errors.New("not enough arguments for bindings")

	// ErrDroppedURL is returned when a request interceptor violates its
	// contract and leaves the descriptor without a URL.
	ErrDroppedURL = errors.New("request interceptor dropped the url")
)
