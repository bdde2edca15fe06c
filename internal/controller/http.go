package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"resource-broker-go/internal/client"
	"resource-broker-go/internal/model"
)

// headerOptionPrefix marks request options that become outgoing headers.
const headerOptionPrefix = "header."

// reasonLimit caps how much of a failed upstream body is kept as the reason.
const reasonLimit = 512

// forwardableResponseHeaders are the only upstream headers copied onto responses.
var forwardableResponseHeaders = map[string]bool{
	"Content-Type":     true,
	"Content-Encoding": true,
	"Cache-Control":    true,
	"Date":             true,
	"Etag":             true,
	"Last-Modified":    true,
	"X-Request-Id":     true,
}

var httpMethods = map[model.Method]string{
	model.MethodGet:    http.MethodGet,
	model.MethodPost:   http.MethodPost,
	model.MethodPut:    http.MethodPut,
	model.MethodDelete: http.MethodDelete,
}

// HTTP serves http: and https: names by issuing the request upstream.
// The resource name is the URL.
type HTTP struct {
	client *client.HTTPClient
	logger *slog.Logger
}

// NewHTTP creates an HTTP controller backed by c.
func NewHTTP(c *client.HTTPClient, logger *slog.Logger) *HTTP {
	return &HTTP{
		client: c,
		logger: logger.With("component", "http_controller"),
	}
}

// Serve implements broker.Controller.
func (h *HTTP) Serve(ctx context.Context, req *model.Request) (*model.Response, error) {
	target := req.Name.String()
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return model.Failure(http.StatusBadRequest, fmt.Sprintf("invalid url %q", target)), nil
	}

	method, ok := httpMethods[req.Method]
	if !ok {
		return model.MethodNotAllowed(req.Method, req.Name), nil
	}

	header := make(http.Header)
	for k, v := range req.Options.WithPrefix(headerOptionPrefix) {
		header.Set(k, v)
	}

	var body io.Reader
	if req.Method == model.MethodPost || req.Method == model.MethodPut {
		rc, err := bodyReader(ctx, req)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		body = rc
	}

	h.logger.Debug("forwarding request", "method", method, "host", u.Host, "path", u.Path)

	resp, err := h.client.DoStream(ctx, method, target, header, body)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		failure := model.Failure(resp.StatusCode, failureReason(resp))
		copyHeaders(failure.Header, resp.Header)
		return failure, nil
	}

	if req.Kind == model.KindRaw || req.Kind == model.KindStream {
		out := model.NewResponse(resp.StatusCode, model.Stream(resp.Body))
		copyHeaders(out.Header, resp.Header)
		out.ContentType = resp.Header.Get("Content-Type")
		return out, nil
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("http %s: read body: %w", req.Name, err)
	}
	out := shape(req.Kind, data)
	if out.Success() {
		out.Code = resp.StatusCode
	}
	copyHeaders(out.Header, resp.Header)
	return out, nil
}

func failureReason(resp *client.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, reasonLimit))
	if reason := strings.TrimSpace(string(data)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}

func copyHeaders(dst model.Options, src http.Header) {
	for key, vals := range src {
		if forwardableResponseHeaders[http.CanonicalHeaderKey(key)] && len(vals) > 0 {
			dst.Set(key, vals[0])
		}
	}
}
