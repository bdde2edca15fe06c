package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
)

// NATS maps names onto subjects: nats:orders.created. Get issues a
// request and returns the reply; Post and Put publish the body.
type NATS struct {
	conn    *nats.Conn
	timeout time.Duration
	logger  *slog.Logger
}

// NewNATS creates a NATS controller on an established connection. timeout
// bounds a request when ctx carries no deadline of its own.
func NewNATS(conn *nats.Conn, timeout time.Duration, logger *slog.Logger) *NATS {
	return &NATS{
		conn:    conn,
		timeout: timeout,
		logger:  logger.With("component", "nats_controller"),
	}
}

// Serve implements broker.Controller.
func (n *NATS) Serve(ctx context.Context, req *model.Request) (*model.Response, error) {
	subject := resource.Decode(req.Name.Path())
	if subject == "" {
		return model.Failure(http.StatusBadRequest, fmt.Sprintf("no subject in %s", req.Name)), nil
	}

	switch req.Method {
	case model.MethodGet:
		return n.request(ctx, req, subject)
	case model.MethodPost, model.MethodPut:
		data, err := readBody(ctx, req)
		if err != nil {
			return nil, err
		}
		msg := nats.NewMsg(subject)
		msg.Data = data
		for k, v := range req.Options.WithPrefix(headerOptionPrefix) {
			msg.Header.Set(k, v)
		}
		if err := n.conn.PublishMsg(msg); err != nil {
			return nil, fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return model.NewResponse(http.StatusAccepted, nil), nil
	}
	return model.MethodNotAllowed(req.Method, req.Name), nil
}

func (n *NATS) request(ctx context.Context, req *model.Request, subject string) (*model.Response, error) {
	if _, ok := ctx.Deadline(); !ok && n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	data, err := readBody(ctx, req)
	if err != nil {
		return nil, err
	}

	reply, err := n.conn.RequestWithContext(ctx, subject, data)
	switch {
	case errors.Is(err, nats.ErrNoResponders):
		return model.Failure(http.StatusServiceUnavailable, fmt.Sprintf("no responders on %s", subject)), nil
	case err != nil:
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}

	n.logger.Debug("reply received", "subject", subject, "bytes", len(reply.Data))
	resp := shape(req.Kind, reply.Data)
	for key, vals := range reply.Header {
		if len(vals) > 0 {
			resp.Header.Set(key, vals[0])
		}
	}
	return resp, nil
}
