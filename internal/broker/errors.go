package broker

import (
	"errors"
	"strings"

	"resource-broker-go/internal/resource"
)

// Error taxonomy. Returned errors wrap these so callers can use errors.Is.
var (
	ErrDuplicateScheme    = errors.New("scheme already registered")
	ErrSchemeNotSupported = errors.New("scheme not supported")
	ErrBackendFault       = errors.New("backend fault")
	ErrCancelled          = errors.New("dispatch cancelled")
)

// DispatchError carries the resource name a dispatch failed for, the stage
// that failed (if any), the taxonomy kind and the original cause.
type DispatchError struct {
	Name  resource.Name
	Stage string
	Kind  error
	Err   error
}

func (e *DispatchError) Error() string {
	var sb strings.Builder
	sb.WriteString("dispatch ")
	sb.WriteString(e.Name.String())
	if e.Stage != "" {
		sb.WriteString(": stage ")
		sb.WriteString(e.Stage)
	}
	if e.Kind != nil && (e.Err == nil || !errors.Is(e.Err, e.Kind)) {
		sb.WriteString(": ")
		sb.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
