// Package controller implements the backends the broker dispatches to.
//
// Backend outcomes such as "not found" or "forbidden" are returned as failure
// responses. Unexpected I/O failures are returned as errors.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"resource-broker-go/internal/model"
)

const (
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

// shape builds a 200 response whose body has the form kind asks for.
// Data that is not valid JSON for a JSON request yields a 422 failure.
func shape(kind model.Kind, data []byte) *model.Response {
	var body *model.Body
	contentType := contentTypeBinary
	switch kind {
	case model.KindText:
		body = model.Value(string(data))
		contentType = contentTypeText
	case model.KindStream:
		body = model.Stream(io.NopCloser(bytes.NewReader(data)))
	case model.KindJSON:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return model.Failure(http.StatusUnprocessableEntity, fmt.Sprintf("decode json: %v", err))
		}
		body = model.Value(v)
		contentType = contentTypeJSON
	default:
		body = model.Bytes(data)
	}
	resp := model.OK(body)
	resp.ContentType = contentType
	return resp
}

// readBody returns the request payload, or nil for an absent body.
func readBody(ctx context.Context, req *model.Request) ([]byte, error) {
	if req.Body.Empty() {
		return nil, nil
	}
	data, err := req.Body.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return data, nil
}

// bodyReader returns the request payload as a stream the caller must close.
func bodyReader(ctx context.Context, req *model.Request) (io.ReadCloser, error) {
	if req.Body.Empty() {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	rc, err := req.Body.Reader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open request body: %w", err)
	}
	return rc, nil
}

// created returns 201 when the target did not exist before the write, else 200.
func created(existed bool) *model.Response {
	if existed {
		return model.OK(nil)
	}
	return model.NewResponse(http.StatusCreated, nil)
}
