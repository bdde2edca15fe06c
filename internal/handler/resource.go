package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"resource-broker-go/internal/broker"
	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
	"resource-broker-go/internal/stage"
)

// StatusClientClosedRequest is reported when the caller went away mid-dispatch.
const StatusClientClosedRequest = 499

// Query parameters with a fixed meaning; every other parameter becomes a request option.
const (
	paramName = "name"
	paramAs   = "as"
)

// Dispatcher runs a request through the broker.
type Dispatcher interface {
	Invoke(ctx context.Context, req *model.Request) (*model.Response, error)
}

var gatewayMethods = map[string]model.Method{
	http.MethodGet:    model.MethodGet,
	http.MethodPost:   model.MethodPost,
	http.MethodPut:    model.MethodPut,
	http.MethodDelete: model.MethodDelete,
}

// ResourceHandler exposes the broker over HTTP at /resource?name=scheme:path.
type ResourceHandler struct {
	broker Dispatcher
	logger *slog.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(d Dispatcher, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{
		broker: d,
		logger: logger.With("component", "resource_handler"),
	}
}

// Handle builds a broker request from the HTTP request, dispatches it and
// writes the response back, streaming stream bodies.
func (h *ResourceHandler) Handle(c echo.Context) error {
	httpReq := c.Request()

	method, ok := gatewayMethods[httpReq.Method]
	if !ok {
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{
			"error": "method not allowed",
		})
	}

	query := httpReq.URL.Query()
	name := query.Get(paramName)
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "query parameter name is required",
		})
	}

	kind := model.KindRaw
	if as := query.Get(paramAs); as != "" {
		k, err := model.ParseKind(as)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		kind = k
	}

	var body *model.Body
	if method == model.MethodPost || method == model.MethodPut {
		body = model.Stream(httpReq.Body)
	}

	req, err := model.NewRequest(method, kind, name, body)
	if err != nil {
		return h.mapError(c, err)
	}
	submitted := req.Name
	for key, vals := range query {
		if key == paramName || key == paramAs || len(vals) == 0 {
			continue
		}
		req.Options.Set(key, vals[0])
	}
	if ct := httpReq.Header.Get(echo.HeaderContentType); ct != "" {
		if _, set := req.Options.Lookup("content-type"); !set {
			req.Options.Set("content-type", ct)
		}
	}

	resp, err := h.broker.Invoke(httpReq.Context(), req)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Close() }()

	if !resp.Success() {
		// A reason for a rewritten name may quote what the stages resolved,
		// such as expanded variables, so only the status text is returned.
		reason := resp.Reason
		if reason == "" || !req.Name.Equal(submitted) {
			reason = failureText(resp.Code)
		}
		return c.JSON(statusOrBadGateway(resp.Code), map[string]string{
			"error": reason,
		})
	}

	return h.write(c, resp)
}

func (h *ResourceHandler) write(c echo.Context, resp *model.Response) error {
	header := c.Response().Header()
	for key, val := range resp.Header {
		header.Set(key, val)
	}
	if resp.ContentType != "" {
		header.Set(echo.HeaderContentType, resp.ContentType)
	}

	if resp.Body.Empty() {
		return c.NoContent(resp.Code)
	}

	if resp.Body.IsStream() {
		rc, err := resp.Body.Reader(c.Request().Context())
		if err != nil {
			return h.mapError(c, err)
		}
		defer func() { _ = rc.Close() }()
		c.Response().WriteHeader(resp.Code)
		// The status is already sent; a failed copy leaves a truncated body.
		if _, err := io.Copy(c.Response(), rc); err != nil {
			h.logger.Error("streaming response body",
				"err", err,
				"name", c.QueryParam(paramName),
			)
		}
		return nil
	}

	switch v := resp.Body.Raw().(type) {
	case []byte:
		return c.Blob(resp.Code, contentType(header, echo.MIMEOctetStream), v)
	case string:
		return c.Blob(resp.Code, contentType(header, echo.MIMETextPlainCharsetUTF8), []byte(v))
	default:
		return c.JSON(resp.Code, v)
	}
}

func failureText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "backend failure"
}

func contentType(h http.Header, fallback string) string {
	if ct := h.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	return fallback
}

// statusOrBadGateway keeps backend codes that are valid HTTP statuses.
func statusOrBadGateway(code int) int {
	if code < 100 || code > 599 {
		return http.StatusBadGateway
	}
	return code
}

func (h *ResourceHandler) mapError(c echo.Context, err error) error {
	name := c.QueryParam(paramName)
	status, msg := classify(err, name)
	if status >= http.StatusInternalServerError {
		h.logger.Error("dispatch error", "err", err, "name", name)
	} else {
		h.logger.Debug("dispatch rejected", "err", err, "name", name)
	}
	return c.JSON(status, map[string]string{
		"error": msg,
	})
}

// classify maps the dispatch error taxonomy onto HTTP statuses. Messages name
// the resource as the caller submitted it; dispatch errors carry the name after
// stage rewrites and are only logged.
func classify(err error, name string) (int, string) {
	var unresolved *stage.UnresolvedVariableError
	switch {
	case errors.Is(err, resource.ErrMalformedName):
		return http.StatusBadRequest, fmt.Sprintf("malformed resource name %q", name)
	case errors.Is(err, broker.ErrSchemeNotSupported):
		return http.StatusNotFound, "no controller for " + name
	case errors.As(err, &unresolved):
		return http.StatusUnprocessableEntity, fmt.Sprintf("unresolved variable %q in %s", unresolved.Name, name)
	case errors.Is(err, stage.ErrUnresolvedVariable):
		return http.StatusUnprocessableEntity, "unresolved variable in " + name
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "dispatch timed out"
	case errors.Is(err, broker.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "client disconnected"
	case errors.Is(err, broker.ErrBackendFault):
		return http.StatusBadGateway, "backend failed for " + name
	}
	return http.StatusInternalServerError, "dispatch failed"
}
