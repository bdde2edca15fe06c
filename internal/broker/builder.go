package broker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"resource-broker-go/internal/convert"
	"resource-broker-go/internal/metrics"
)

// Options carries the collaborators a Broker is built with.
type Options struct {
	// Converter backs Body.As on returned responses. Defaults to convert.Default.
	Converter convert.Converter
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
	// Metrics is optional; nil disables dispatch metrics.
	Metrics *metrics.Metrics
}

// Builder collects controllers and stages. The first configuration error is
// kept and returned by Build.
type Builder struct {
	opts     Options
	registry *Registry
	stages   []Stage
	err      error
}

// NewBuilder starts a broker configuration.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts, registry: NewRegistry()}
}

// Register adds a controller owning schemes.
func (b *Builder) Register(c Controller, schemes ...string) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.registry.Register(c, schemes...); err != nil {
		b.err = fmt.Errorf("broker: %w", err)
	}
	return b
}

// Use appends stages; they run in the order they were added.
func (b *Builder) Use(stages ...Stage) *Builder {
	if b.err != nil {
		return b
	}
	for _, s := range stages {
		if s == nil {
			b.err = errors.New("broker: nil stage")
			return b
		}
		b.stages = append(b.stages, s)
	}
	return b
}

// Build returns an immutable Broker.
func (b *Builder) Build() (*Broker, error) {
	if b.err != nil {
		return nil, b.err
	}

	conv := b.opts.Converter
	if conv == nil {
		conv = convert.Default
	}
	logger := b.opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Broker{
		registry: b.registry.clone(),
		stages:   append([]Stage(nil), b.stages...),
		conv:     conv,
		logger:   logger.With("component", "broker"),
		metrics:  b.opts.Metrics,
	}, nil
}
