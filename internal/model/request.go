package model

import (
	"fmt"

	"resource-broker-go/internal/resource"
)

// Request is the envelope a caller hands to the broker. Stages may rewrite
// Name and Options in place; the matched controller consumes it once.
type Request struct {
	Method  Method
	Name    resource.Name
	Kind    Kind
	Options Options
	Body    *Body
}

// NewRequest parses name and builds a Request.
func NewRequest(method Method, kind Kind, name string, body *Body) (*Request, error) {
	if _, ok := methodNames[method]; !ok {
		return nil, fmt.Errorf("new request: unsupported method %v", method)
	}
	n, err := resource.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	return &Request{
		Method:  method,
		Name:    n,
		Kind:    kind,
		Options: make(Options),
		Body:    body,
	}, nil
}

// Get builds a GET request whose body is returned in the controller's native form.
func Get(name string) (*Request, error) { return NewRequest(MethodGet, KindRaw, name, nil) }

// GetText builds a GET request expecting a text body.
func GetText(name string) (*Request, error) { return NewRequest(MethodGet, KindText, name, nil) }

// GetBinary builds a GET request expecting a byte body.
func GetBinary(name string) (*Request, error) { return NewRequest(MethodGet, KindBinary, name, nil) }

// GetStream builds a GET request expecting a stream body the caller must close.
func GetStream(name string) (*Request, error) { return NewRequest(MethodGet, KindStream, name, nil) }

// GetJSON builds a GET request expecting a decoded JSON value.
func GetJSON(name string) (*Request, error) { return NewRequest(MethodGet, KindJSON, name, nil) }

// Post builds a POST request carrying body.
func Post(name string, body *Body) (*Request, error) {
	return NewRequest(MethodPost, KindRaw, name, body)
}

// Put builds a PUT request carrying body.
func Put(name string, body *Body) (*Request, error) {
	return NewRequest(MethodPut, KindRaw, name, body)
}

// Delete builds a DELETE request.
func Delete(name string) (*Request, error) { return NewRequest(MethodDelete, KindRaw, name, nil) }

// WithOption sets an option and returns r for chaining.
func (r *Request) WithOption(key, value string) *Request {
	if r.Options == nil {
		r.Options = make(Options)
	}
	r.Options.Set(key, value)
	return r
}

// WithKind sets the expected body kind and returns r for chaining.
func (r *Request) WithKind(k Kind) *Request {
	r.Kind = k
	return r
}

func (r *Request) String() string {
	return r.Method.String() + " " + r.Name.String()
}
