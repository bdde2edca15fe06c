package broker

import (
	"github.com/gofrs/uuid/v5"

	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
)

// Context is the per-dispatch carrier of a request and its eventual response.
// It is owned by a single Invoke call and never shared.
type Context struct {
	ID       string
	Request  *model.Request
	Response *model.Response

	// Original is the resource name as the caller submitted it, before any
	// stage rewrote it.
	Original resource.Name
}

// NewContext wraps req in a fresh Context.
func NewContext(req *model.Request) *Context {
	return &Context{
		ID:       uuid.Must(uuid.NewV4()).String(),
		Request:  req,
		Original: req.Name,
	}
}

// Respond attaches a response, which ends the stage chain and skips controller
// lookup.
func (c *Context) Respond(resp *model.Response) {
	c.Response = resp
}

// Responded reports whether a response has been attached.
func (c *Context) Responded() bool {
	return c.Response != nil
}
