package broker

import (
	"context"

	"resource-broker-go/internal/model"
)

// Controller serves the requests of the schemes it is registered for.
//
// A backend outcome such as "not found" is reported as a non-success
// Response. A returned error means the controller itself failed and is
// surfaced to the caller as ErrBackendFault.
type Controller interface {
	Serve(ctx context.Context, req *model.Request) (*model.Response, error)
}

// ControllerFunc adapts a function to the Controller interface.
type ControllerFunc func(ctx context.Context, req *model.Request) (*model.Response, error)

// Serve calls f(ctx, req).
func (f ControllerFunc) Serve(ctx context.Context, req *model.Request) (*model.Response, error) {
	return f(ctx, req)
}
