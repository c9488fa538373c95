// Package client provides the pooled HTTP client for backend calls.
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

	"previewgate/internal/config"
	"previewgate/internal/metrics"
)

// BackendClient executes HTTP requests against the configured backend.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling and a
// request timeout from config. The metrics parameter is optional; pass nil
// to skip upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do executes a request and returns the response status, headers, and body
// read in full as text.
// The provided context bounds the request lifetime: when it is canceled
// (client disconnect, probe timeout), the backend call is canceled too.
func (c *BackendClient) Do(ctx context.Context, method, url string, header http.Header, body io.Reader) (int, http.Header, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, "", fmt.Errorf("build backend request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("backend request",
		"method", method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	labelMethod := metrics.NormalizeMethod(method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.BackendDuration.WithLabelValues(labelMethod).Observe(duration)
		}
		return 0, nil, "", fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.BackendDuration.WithLabelValues(labelMethod).Observe(duration)
		c.metrics.BackendResponses.WithLabelValues(labelMethod, status).Inc()
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", fmt.Errorf("read backend response: %w", err)
	}

	return resp.StatusCode, resp.Header, string(text), nil
}
