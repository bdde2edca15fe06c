// Package client provides the pooled HTTP client used by the http controller.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"resource-broker-go/internal/config"
	"resource-broker-go/internal/metrics"
)

// backendLabel is the "backend" label value for metrics recorded here.
const backendLabel = "http"

// Response is an upstream response whose body the caller must close.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// HTTPClient sends requests to HTTP backends.
type HTTPClient struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewHTTPClient creates an HTTPClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable backend metrics recording.
func NewHTTPClient(cfg config.HTTPConfig, logger *slog.Logger, m *metrics.Metrics) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.IdleConnections,
		MaxIdleConnsPerHost: cfg.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "http_client"),
		metrics:   m,
	}
}

// Do executes an HTTP request and returns the raw response.
// The caller is responsible for closing the response body.
func (c *HTTPClient) Do(req *http.Request) (*Response, error) {
	c.logger.Debug("backend request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via Response
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.BackendDuration.WithLabelValues(backendLabel, method).Observe(duration)
		}
		return nil, fmt.Errorf("backend request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.BackendDuration.WithLabelValues(backendLabel, method).Observe(duration)
		c.metrics.BackendResponses.WithLabelValues(backendLabel, method, status).Inc()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream builds and executes a request, returning the response body as a stream.
// The caller is responsible for closing the returned body. Cancelling ctx
// cancels the backend request as well.
func (c *HTTPClient) DoStream(ctx context.Context, method, url string, header http.Header, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	return c.Do(req)
}
