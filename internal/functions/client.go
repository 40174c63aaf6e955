package functions

// Package functions contains HTTP clients for the remote extractor, scraper and analyzer functions.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	contentType        = "application/json"
	unknownError       = "Unknown error"
	defaultMaxResponse = 8 << 20
)

// ErrResponseTooLarge is returned when a function answers with more bytes than the client accepts.
var ErrResponseTooLarge = errors.New("function response too large")

// RemoteError is a non-200 answer from a function. Message is the function's own
// error text, or "Unknown error" when the body did not carry one.
type RemoteError struct {
	Function string
	Status   int
	Message  string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// client posts JSON to a single function endpoint.
type client struct {
	name     string
	url      string
	http     *http.Client
	maxBytes int64
	logger   *zap.Logger
}

func newClient(name, url string, timeout time.Duration, maxBytes int64, logger *zap.Logger) *client {
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponse
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		name: name,
		url:  url,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: maxBytes,
		logger:   logger.With(zap.String("function", name)),
	}
}

// post sends in as JSON and decodes a 200 answer into out.
func (c *client) post(ctx context.Context, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	c.logger.Debug("make request", zap.String("url", c.url))
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.name, err)
	}
	if int64(len(data)) > c.maxBytes {
		return fmt.Errorf("%w: %s answered more than %d bytes", ErrResponseTooLarge, c.name, c.maxBytes)
	}

	c.logger.Debug("got response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Function: c.name, Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return unknownError
	}
	var msg string
	if err := json.Unmarshal(envelope.Error, &msg); err == nil {
		if strings.TrimSpace(msg) == "" {
			return unknownError
		}
		return msg
	}
	// {"error": {"code": ..., "message": ...}} as written by our own HTTP API.
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	return unknownError
}
