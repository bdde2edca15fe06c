package model

import (
	"fmt"
	"net/http"

	"resource-broker-go/internal/resource"
)

// StatusCategory groups status codes by their hundreds digit.
type StatusCategory int

// Status categories.
const (
	CategoryUnknown StatusCategory = iota
	CategoryInformational
	CategorySuccess
	CategoryRedirection
	CategoryClientError
	CategoryServerError
)

func (c StatusCategory) String() string {
	switch c {
	case CategoryInformational:
		return "informational"
	case CategorySuccess:
		return "success"
	case CategoryRedirection:
		return "redirection"
	case CategoryClientError:
		return "client_error"
	case CategoryServerError:
		return "server_error"
	}
	return "unknown"
}

// CategoryOf returns the category of a numeric status code.
func CategoryOf(code int) StatusCategory {
	if code < 100 || code > 599 {
		return CategoryUnknown
	}
	return StatusCategory(code / 100)
}

// Response is produced by a controller and owned by the caller once returned.
// Callers must Close it when the body is a stream.
type Response struct {
	Code        int
	Body        *Body
	ContentType string
	Reason      string
	Header      Options
}

// NewResponse builds a response with the given code and body.
func NewResponse(code int, body *Body) *Response {
	return &Response{Code: code, Body: body, Header: make(Options)}
}

// OK builds a 200 response.
func OK(body *Body) *Response {
	return NewResponse(http.StatusOK, body)
}

// Failure builds a response for an outcome the backend reported as unsuccessful.
func Failure(code int, reason string) *Response {
	r := NewResponse(code, nil)
	r.Reason = reason
	return r
}

// NotFound builds a 404 failure for name.
func NotFound(name resource.Name) *Response {
	return Failure(http.StatusNotFound, fmt.Sprintf("resource not found: %s", name))
}

// MethodNotAllowed builds a 405 failure for a method the backend does not serve.
func MethodNotAllowed(m Method, name resource.Name) *Response {
	return Failure(http.StatusMethodNotAllowed, fmt.Sprintf("%s not supported for %s", m, name))
}

// Success reports whether the response carries a 2xx code.
func (r *Response) Success() bool {
	return r.Category() == CategorySuccess
}

// Category returns the status category derived from Code.
func (r *Response) Category() StatusCategory {
	return CategoryOf(r.Code)
}

// Close releases the body.
func (r *Response) Close() error {
	if r == nil {
		return nil
	}
	return r.Body.Close()
}
