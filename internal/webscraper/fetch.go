package webscraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"resumeboost/internal/config"
)

// ErrUnsupportedScheme is returned when a URL or redirect leaves http/https.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// TooLargeError is returned when a page body exceeds the configured cap.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("page exceeds %d bytes", e.Limit)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// Fetcher downloads job pages under a fixed timeout, redirect and size policy.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

// NewFetcher builds a Fetcher from cfg, filling unset fields with defaults.
func NewFetcher(cfg config.ScraperConfig) *Fetcher {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = 0
	}
	maxRedirects := cfg.MaxRedirects

	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.FetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				if !allowedScheme(req.URL.Scheme) {
					return fmt.Errorf("%w: redirect to %s", ErrUnsupportedScheme, req.URL.Scheme)
				}
				return nil
			},
		},
		maxBytes:  cfg.MaxBodyBytes,
		userAgent: cfg.UserAgent,
	}
}

func allowedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// Fetch returns the visible text of the page at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if !allowedScheme(req.URL.Scheme) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, req.URL.Scheme)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &StatusError{Status: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return "", &TooLargeError{Limit: f.maxBytes}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", &TooLargeError{Limit: f.maxBytes}
	}

	return VisibleText(bytes.NewReader(body))
}
