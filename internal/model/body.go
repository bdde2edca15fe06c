package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"resource-broker-go/internal/convert"
)

var (
	// ErrNoBody is returned when reading an absent body.
	ErrNoBody = errors.New("body is empty")
	// ErrBodyConsumed is returned when a stream body is read a second time.
	ErrBodyConsumed = errors.New("stream body already consumed")
)

// Body is an opaque payload: bytes, a structured value, a stream, or a lazy
// producer of a stream. A nil *Body is an absent body.
//
// Stream bodies are single pass. Close releases the underlying stream exactly
// once; reading a stream to completion through Decode/As/ReadAll also closes it.
type Body struct {
	data     []byte
	hasData  bool
	value    any
	hasValue bool
	stream   io.ReadCloser
	open     func(ctx context.Context) (io.ReadCloser, error)
	consumed bool

	conv convert.Converter

	closeOnce sync.Once
	closeErr  error
}

// Bytes wraps a byte slice.
func Bytes(b []byte) *Body {
	return &Body{data: b, hasData: true}
}

// Text wraps a string.
func Text(s string) *Body {
	return &Body{data: []byte(s), hasData: true}
}

// Value wraps a structured value.
func Value(v any) *Body {
	return &Body{value: v, hasValue: true}
}

// Stream wraps an already-open stream. The body takes ownership of rc.
func Stream(rc io.ReadCloser) *Body {
	return &Body{stream: rc}
}

// Lazy wraps a producer that opens the stream on first read.
func Lazy(open func(ctx context.Context) (io.ReadCloser, error)) *Body {
	return &Body{open: open}
}

// Empty reports whether the body carries no payload.
func (b *Body) Empty() bool {
	return b == nil || (!b.hasData && !b.hasValue && b.stream == nil && b.open == nil)
}

// IsStream reports whether the body is backed by a stream or producer.
func (b *Body) IsStream() bool {
	return b != nil && !b.hasData && !b.hasValue && (b.stream != nil || b.open != nil)
}

// Raw returns the in-memory representation: []byte or the structured value.
// It returns nil for streams that have not been read yet.
func (b *Body) Raw() any {
	switch {
	case b == nil:
		return nil
	case b.hasValue:
		return b.value
	case b.hasData:
		return b.data
	}
	return nil
}

// SetConverter sets the converter used by Decode if none was set yet.
func (b *Body) SetConverter(c convert.Converter) {
	if b != nil && b.conv == nil {
		b.conv = c
	}
}

func (b *Body) converter() convert.Converter {
	if b.conv != nil {
		return b.conv
	}
	return convert.Default
}

// Reader returns the body as a stream. For stream bodies ownership moves to the
// caller, who must close the returned reader; Close on the body still releases it.
func (b *Body) Reader(ctx context.Context) (io.ReadCloser, error) {
	if b.Empty() {
		return nil, ErrNoBody
	}
	if b.hasData {
		return io.NopCloser(bytes.NewReader(b.data)), nil
	}
	if b.hasValue {
		data, err := b.valueBytes()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	if b.consumed {
		return nil, ErrBodyConsumed
	}
	if err := b.ensureOpen(ctx); err != nil {
		return nil, err
	}
	b.consumed = true
	return &onceCloser{Reader: b.stream, body: b}, nil
}

// ReadAll materializes the body as bytes. Stream bodies are drained, closed and
// cached so later calls succeed.
func (b *Body) ReadAll(ctx context.Context) ([]byte, error) {
	if b.Empty() {
		return nil, ErrNoBody
	}
	if b.hasData {
		return b.data, nil
	}
	if b.hasValue {
		return b.valueBytes()
	}
	if b.consumed {
		return nil, ErrBodyConsumed
	}
	if err := b.ensureOpen(ctx); err != nil {
		return nil, err
	}
	b.consumed = true
	data, err := io.ReadAll(contextReader{ctx: ctx, r: b.stream})
	closeErr := b.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close body: %w", closeErr)
	}
	b.data, b.hasData = data, true
	return data, nil
}

// Decode converts the body into dst using the body's converter.
func (b *Body) Decode(ctx context.Context, dst any) error {
	if b.Empty() {
		return ErrNoBody
	}
	if b.hasValue {
		return b.converter().Convert(b.value, dst)
	}
	data, err := b.ReadAll(ctx)
	if err != nil {
		return err
	}
	return b.converter().Convert(data, dst)
}

// Close releases the underlying stream, if any. It is safe to call repeatedly.
func (b *Body) Close() error {
	if b == nil {
		return nil
	}
	b.closeOnce.Do(func() {
		if b.stream != nil {
			b.closeErr = b.stream.Close()
		}
		// A producer that was never opened has nothing to release.
		b.open = nil
	})
	return b.closeErr
}

func (b *Body) ensureOpen(ctx context.Context) error {
	if b.stream != nil {
		return nil
	}
	if b.open == nil {
		return ErrBodyConsumed
	}
	rc, err := b.open(ctx)
	if err != nil {
		return fmt.Errorf("open body: %w", err)
	}
	b.stream = rc
	return nil
}

func (b *Body) valueBytes() ([]byte, error) {
	var out []byte
	if err := b.converter().Convert(b.value, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// As converts the body into a T.
func As[T any](ctx context.Context, b *Body) (T, error) {
	var out T
	err := b.Decode(ctx, &out)
	return out, err
}

type onceCloser struct {
	io.Reader
	body *Body
}

func (c *onceCloser) Close() error { return c.body.Close() }

// contextReader stops a drain between reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
