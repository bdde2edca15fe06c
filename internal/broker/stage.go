package broker

import "context"

// Stage runs before controller dispatch. It may rewrite c.Request, attach a
// response with c.Respond to short-circuit, or return an error to abort.
type Stage interface {
	Name() string
	Invoke(ctx context.Context, c *Context) error
}

// StageFunc is the function form of a stage.
type StageFunc func(ctx context.Context, c *Context) error

// NewStage names fn as a Stage.
func NewStage(name string, fn StageFunc) Stage {
	return &funcStage{name: name, fn: fn}
}

type funcStage struct {
	name string
	fn   StageFunc
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Invoke(ctx context.Context, c *Context) error { return s.fn(ctx, c) }
