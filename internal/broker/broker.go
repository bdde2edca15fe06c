// Package broker routes resource requests through an ordered stage chain to
// the controller that owns the request's scheme.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"resource-broker-go/internal/convert"
	"resource-broker-go/internal/metrics"
	"resource-broker-go/internal/model"
)

var errNilResponse = errors.New("controller returned no response and no error")

// Broker dispatches requests. It is read-only after Build and safe for
// concurrent use.
type Broker struct {
	registry *Registry
	stages   []Stage
	conv     convert.Converter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Schemes lists the schemes the broker can serve.
func (b *Broker) Schemes() []string {
	return b.registry.Schemes()
}

// Stages lists stage names in execution order.
func (b *Broker) Stages() []string {
	names := make([]string, len(b.stages))
	for i, s := range b.stages {
		names[i] = s.Name()
	}
	return names
}

// Invoke runs req through the stages and the owning controller.
//
// The caller receives either a Response, possibly a non-success one, or a
// *DispatchError. A response with a stream body must be closed by the caller.
// If ctx is done before Invoke returns, any response already produced is
// released and the error matches ErrCancelled.
func (b *Broker) Invoke(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("dispatch: nil request")
	}
	if req.Options == nil {
		req.Options = make(model.Options)
	}

	c := NewContext(req)
	start := time.Now()
	if b.metrics != nil {
		b.metrics.DispatchInFlight.Inc()
		defer b.metrics.DispatchInFlight.Dec()
	}

	resp, outcome, err := b.dispatch(ctx, c)
	b.observe(c, outcome, start, err)

	return resp, err
}

func (b *Broker) dispatch(ctx context.Context, c *Context) (*model.Response, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, metrics.OutcomeCancelled, b.cancelled(c, "", err)
	}

	for _, s := range b.stages {
		if err := ctx.Err(); err != nil {
			return nil, metrics.OutcomeCancelled, b.cancelled(c, s.Name(), err)
		}
		if err := s.Invoke(ctx, c); err != nil {
			_ = c.Response.Close()
			if ctx.Err() != nil {
				return nil, metrics.OutcomeCancelled, b.cancelled(c, s.Name(), err)
			}
			return nil, metrics.OutcomeStageError, &DispatchError{Name: c.Original, Stage: s.Name(), Err: err}
		}
		if c.Responded() {
			return b.finish(ctx, c, metrics.OutcomeShortCircuit)
		}
	}

	name := c.Request.Name
	ctrl, err := b.registry.Resolve(name.Scheme())
	if err != nil {
		return nil, metrics.OutcomeNoController, &DispatchError{Name: name, Kind: ErrSchemeNotSupported, Err: err}
	}

	resp, err := serve(ctx, ctrl, c.Request)
	if err != nil {
		_ = resp.Close()
		if ctx.Err() != nil {
			return nil, metrics.OutcomeCancelled, b.cancelled(c, "", err)
		}
		return nil, metrics.OutcomeFault, &DispatchError{Name: name, Kind: ErrBackendFault, Err: err}
	}
	if resp == nil {
		return nil, metrics.OutcomeFault, &DispatchError{Name: name, Kind: ErrBackendFault, Err: errNilResponse}
	}

	c.Respond(resp)
	outcome := metrics.OutcomeSuccess
	if !resp.Success() {
		outcome = metrics.OutcomeFailure
	}
	return b.finish(ctx, c, outcome)
}

// finish hands the response to the caller unless the dispatch was cancelled
// in the meantime, in which case the response is released.
func (b *Broker) finish(ctx context.Context, c *Context, outcome string) (*model.Response, string, error) {
	if err := ctx.Err(); err != nil {
		_ = c.Response.Close()
		return nil, metrics.OutcomeCancelled, b.cancelled(c, "", err)
	}
	if c.Response.Body != nil {
		c.Response.Body.SetConverter(b.conv)
	}
	return c.Response, outcome, nil
}

func (b *Broker) cancelled(c *Context, stage string, cause error) error {
	return &DispatchError{Name: c.Request.Name, Stage: stage, Kind: ErrCancelled, Err: cause}
}

// serve calls the controller, turning a panic into a fault.
func serve(ctx context.Context, ctrl Controller, req *model.Request) (resp *model.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("controller panic: %v", r)
		}
	}()
	return ctrl.Serve(ctx, req)
}

func (b *Broker) observe(c *Context, outcome string, start time.Time, err error) {
	elapsed := time.Since(start)
	scheme := c.Request.Name.Scheme()

	attrs := []any{
		"id", c.ID,
		"method", c.Request.Method.String(),
		"name", c.Request.Name.String(),
		"outcome", outcome,
		"duration_ms", elapsed.Milliseconds(),
	}
	if !c.Original.Equal(c.Request.Name) {
		attrs = append(attrs, "original", c.Original.String())
	}
	if c.Response != nil && err == nil {
		attrs = append(attrs, "status", c.Response.Code)
	}

	switch outcome {
	case metrics.OutcomeFault:
		b.logger.Error("dispatch fault", append(attrs, "err", err)...)
	case metrics.OutcomeStageError, metrics.OutcomeNoController:
		b.logger.Warn("dispatch failed", append(attrs, "err", err)...)
	default:
		b.logger.Debug("dispatch", attrs...)
	}

	if b.metrics == nil {
		return
	}
	if !b.registry.Owns(scheme) {
		scheme = metrics.UnregisteredScheme
	}
	b.metrics.DispatchTotal.WithLabelValues(scheme, outcome).Inc()
	b.metrics.DispatchDuration.WithLabelValues(scheme).Observe(elapsed.Seconds())
}
