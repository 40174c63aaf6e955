package webscraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"resumeboost/internal/functions"
	"resumeboost/internal/logger"
	"resumeboost/internal/storage"
)

// Package webscraper is the scraper function: it returns the visible text of a
// job posting page and optionally stores it.

// PageFetcher returns the visible text of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Handler serves the scraper function over HTTP.
type Handler struct {
	fetcher PageFetcher
	store   storage.Storage
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler builds the handler. store may be nil, in which case requests that
// carry an s3_key are answered without storing.
func NewHandler(fetcher PageFetcher, store storage.Storage, timeout time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{fetcher: fetcher, store: store, timeout: timeout, logger: log}
}

// Register mounts the function on app.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/", h.Scrape)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// Scrape handles {url, s3_key} and answers {content, s3_key}.
func (h *Handler) Scrape(c *fiber.Ctx) error {
	var req functions.ScrapeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return fail(c, fiber.StatusBadRequest, "URL is missing from the request")
	}
	target, err := url.PathUnescape(raw)
	if err != nil || !(strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")) {
		return fail(c, fiber.StatusBadRequest, "Invalid URL format. Must start with http:// or https://")
	}

	start := time.Now()
	content, err := h.fetcher.Fetch(c.UserContext(), target)
	if err != nil {
		h.logger.Warn("scrape failed", zap.String("url", target), zap.Error(err))
		return fail(c, fiber.StatusBadGateway, "Request failed: "+err.Error())
	}

	resp := functions.ScrapeResponse{Content: content}
	if key := strings.TrimSpace(req.Key); key != "" && h.store != nil {
		if err := h.save(c.UserContext(), key, content); err != nil {
			h.logger.Warn("store scraped content failed", zap.String("key", key), zap.Error(err))
			return fail(c, fiber.StatusInternalServerError, "Error uploading to S3: "+err.Error())
		}
		resp.Key = key
	}

	h.logger.Info("page scraped",
		zap.String("url", target),
		zap.String("key", resp.Key),
		zap.Int("text_bytes", len(content)),
		zap.Duration("duration", time.Since(start)),
		zap.String("preview", logger.Truncate(content, 80)),
	)
	return c.JSON(resp)
}

func (h *Handler) save(ctx context.Context, key, content string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	_, err := h.store.Put(ctx, key, strings.NewReader(content), storage.PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: "text/plain",
	})
	return err
}
