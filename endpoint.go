package courier

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Endpoint is the static declaration of one HTTP operation: the verb, a URL
// template with :name path placeholders, the parameter bindings mapping call
// arguments to request parts, and optional fixed headers applied to every
// call of this endpoint.
//
// Endpoints are declared at configuration time and registered on a Client;
// they are read-only afterwards.
//
// Example:
//
//	client.MustRegister(courier.Endpoint{
//	    Name:   "GetItem",
//	    Method: http.MethodGet,
//	    Path:   "/items/:id",
//	    Bindings: []courier.Binding{
//	        courier.BindPath("id", 0),
//	        courier.BindQuery("verbose", 1),
//	    },
//	})
type Endpoint struct {
	// Name registers the endpoint on the client and labels its spans.
	Name string

	// Method is the HTTP verb.
	Method string

	// Path is the URL template relative to the client base URL. Literal
	// :name tokens are replaced by Path bindings; tokens without a
	// matching binding are left as-is.
	Path string

	// Bindings maps positional call arguments to request parts.
	Bindings []Binding

	// Headers are fixed headers applied to every call of this endpoint,
	// layered between the client defaults and per-call Header bindings.
	Headers map[string]string
}

// validate fails fast on declaration errors: missing name or method, a Path
// or Header binding without a key, or more than one Body binding.
func (e *Endpoint) validate() error {
	if e.Name == "" {
		return ErrMissingName
	}
	if e.Method == "" {
		return fmt.Errorf("endpoint %q: %w", e.Name, ErrMissingMethod)
	}

	bodies := 0
	for _, b := range e.Bindings {
		switch b.Role {
		case RolePath, RoleHeader:
			if b.Key == "" {
				return fmt.Errorf("endpoint %q: %s binding for argument %d: %w",
					e.Name, b.Role, b.Arg, ErrMissingKey)
			}
		case RoleBody:
			bodies++
			if bodies > 1 {
				return fmt.Errorf("endpoint %q: %w", e.Name, ErrMultipleBodyBindings)
			}
		case RoleQuery:
			// Key is optional: keyless query bindings flatten map
			// arguments.
		}
		if b.Arg < 0 {
			return fmt.Errorf("endpoint %q: %s binding has negative argument index %d",
				e.Name, b.Role, b.Arg)
		}
	}
	return nil
}

// descriptor assembles a RequestDescriptor from the declared bindings and the
// actual call arguments.
//
// Assembly order: body, path substitution, query encoding, header layering
// (client defaults, endpoint fixed headers, per-call bindings — appended, so
// duplicates are permitted), then URL join of base and template.
func (e *Endpoint) descriptor(baseURL string, defaults http.Header, args []any) (*RequestDescriptor, error) {
	for _, b := range e.Bindings {
		if b.Arg >= len(args) {
			return nil, fmt.Errorf("endpoint %q: %s binding references argument %d, got %d arguments: %w",
				e.Name, b.Role, b.Arg, len(args), ErrMissingArgument)
		}
	}

	d := NewRequestDescriptor(e.Method, "")
	path := e.Path

	for k, vs := range defaults {
		for _, v := range vs {
			d.Header.Add(k, v)
		}
	}
	for k, v := range e.Headers {
		d.Header.Add(k, v)
	}

	for _, b := range e.Bindings {
		arg := args[b.Arg]
		switch b.Role {
		case RoleBody:
			d.Body = arg
		case RolePath:
			path = strings.ReplaceAll(path, ":"+b.Key, url.PathEscape(stringify(arg)))
		case RoleQuery:
			applyQueryBinding(d.Query, b.Key, arg)
		case RoleHeader:
			d.Header.Add(b.Key, stringify(arg))
		}
	}

	d.URL = path
	if baseURL != "" {
		d.URL = joinURL(baseURL, path)
	}

	return d, nil
}
