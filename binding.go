package courier

import "fmt"

// Role identifies the semantic role a bound argument plays when a request is
// assembled from a declared endpoint.
type Role int

const (
	// RolePath substitutes the argument into a :name placeholder in the
	// URL template.
	RolePath Role = iota

	// RoleQuery encodes the argument into the query string.
	RoleQuery

	// RoleBody uses the argument as the request payload. At most one per
	// endpoint.
	RoleBody

	// RoleHeader sets the argument as a request header value.
	RoleHeader
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RolePath:
		return "path"
	case RoleQuery:
		return "query"
	case RoleBody:
		return "body"
	case RoleHeader:
		return "header"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Binding associates one positional call argument with its role in the
// assembled request. Bindings are declared once per endpoint and are
// read-only afterwards; only the argument values vary per call.
//
// Key is required for RolePath and RoleHeader, optional for RoleQuery
// (a keyless query binding expects a string-keyed map argument, whose own
// keys become the parameter names), and unused for RoleBody.
type Binding struct {
	Role Role
	Key  string
	Arg  int
}

// BindPath declares a path-placeholder binding: the argument at index arg
// replaces the literal token ":key" in the URL template.
func BindPath(key string, arg int) Binding {
	return Binding{Role: RolePath, Key: key, Arg: arg}
}

// BindQuery declares a query-parameter binding. An empty key is allowed when
// the argument is a string-keyed map to flatten.
func BindQuery(key string, arg int) Binding {
	return Binding{Role: RoleQuery, Key: key, Arg: arg}
}

// BindBody declares the request-body binding. An endpoint may carry at most
// one.
func BindBody(arg int) Binding {
	return Binding{Role: RoleBody, Arg: arg}
}

// BindHeader declares a per-call header binding for the given header name.
func BindHeader(key string, arg int) Binding {
	return Binding{Role: RoleHeader, Key: key, Arg: arg}
}
