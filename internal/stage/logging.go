package stage

import (
	"context"
	"log/slog"

	"resource-broker-go/internal/broker"
)

// RequestLogger returns a stage that logs each incoming request at debug level.
func RequestLogger(logger *slog.Logger) broker.Stage {
	logger = logger.With("component", "request_log")
	return broker.NewStage("log", func(ctx context.Context, c *broker.Context) error {
		logger.DebugContext(ctx, "request",
			"id", c.ID,
			"method", c.Request.Method.String(),
			"name", c.Request.Name.String(),
			"kind", c.Request.Kind.String(),
			"options", len(c.Request.Options),
		)
		return nil
	})
}
