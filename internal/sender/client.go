// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package sender

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tab_monitor/internal/dto"
)

// LogActivityPath is the collection endpoint path
const LogActivityPath = "/log_activity"

// ErrMalformedResponse is returned when the collector answers 2xx with a
// body that is not JSON
var ErrMalformedResponse = errors.New("malformed response")

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 64 * 1024

// Client handles HTTP communication with the collection endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	compress   bool // Whether to use gzip compression
}

// NewClient creates a new HTTP client for sending activity records.
// collectorURL is the collector base address; LogActivityPath is appended.
func NewClient(collectorURL string, timeout time.Duration, compress bool) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(collectorURL, "/") + LogActivityPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		compress: compress,
	}
}

// Endpoint returns the full URL records are posted to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts a single record and decodes the JSON acknowledgement
func (c *Client) Send(ctx context.Context, record dto.ActivityRecord) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	if c.compress {
		// Try with gzip first
		ack, err := c.sendWithGzip(ctx, data)
		if err == nil {
			return ack, nil
		}

		// If server rejected gzip (415 Unsupported Media Type), retry without compression
		if isUnsupportedMediaType(err) {
			return c.sendRaw(ctx, data)
		}

		return nil, err
	}

	return c.sendRaw(ctx, data)
}

// sendWithGzip sends gzip-compressed data
func (c *Client) sendWithGzip(ctx context.Context, data []byte) (map[string]any, error) {
	var compressed bytes.Buffer
	gzWriter, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := gzWriter.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	return c.do(req)
}

// sendRaw sends uncompressed data
func (c *Client) sendRaw(ctx context.Context, data []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &httpError{statusCode: resp.StatusCode}
	}

	var ack map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&ack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return ack, nil
}

// httpError represents an HTTP error with status code
type httpError struct {
	statusCode int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("server returned status %d", e.statusCode)
}

// StatusCode extracts the HTTP status from an error returned by Send, or 0
func StatusCode(err error) int {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.statusCode
	}
	return 0
}

// isUnsupportedMediaType checks if error is 415 Unsupported Media Type
func isUnsupportedMediaType(err error) bool {
	return StatusCode(err) == http.StatusUnsupportedMediaType
}
